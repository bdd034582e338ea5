package peach

import "strings"

// Коды результата Peach Payments.
// Успех: префиксы 000.000 и 000.100. Ожидание: 000.200.
const (
	CodeSuccess            = "000.000.000"
	CodeSuccessReview      = "000.100.110"
	CodeCheckoutCreated    = "000.200.100"
	CodePaymentPending     = "000.200.000"
	CodeCancelledByShopper = "100.396.104"
)

// ResultCode блок result из ответа шлюза
type ResultCode struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// Succeeded сообщает об успешном исходе платежа
func (r ResultCode) Succeeded() bool {
	return strings.HasPrefix(r.Code, "000.000") || strings.HasPrefix(r.Code, "000.100")
}

// Pending сообщает, что платеж еще обрабатывается
func (r ResultCode) Pending() bool {
	return strings.HasPrefix(r.Code, "000.200")
}

// CancelledByShopper сообщает, что покупатель отменил платеж
func (r ResultCode) CancelledByShopper() bool {
	return r.Code == CodeCancelledByShopper
}
