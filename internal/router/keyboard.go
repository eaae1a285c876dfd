package router

import (
	"merchantbot/internal/callback"
	"merchantbot/internal/domain"
)

func mainMenu() domain.Keyboard {
	return domain.Keyboard{
		{{Label: "Check balance", Data: callback.Balance}},
		{{Label: "Recent payments", Data: callback.PaymentsLast}},
		{{Label: "Find payment", Data: callback.CheckPayment}},
		{{Label: "Withdraw", Data: callback.Withdraw}},
	}
}

func cancelKeyboard() domain.Keyboard {
	return domain.Keyboard{
		{{Label: "Cancel", Data: callback.Cancel}},
	}
}

func hideKeyboard() domain.Keyboard {
	return domain.Keyboard{
		{{Label: "Hide", Data: callback.DeleteMessage}},
	}
}
