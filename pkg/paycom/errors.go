package paycom

import "fmt"

// Message carries the trilingual text the merchant API must return
// alongside every error code.
type Message struct {
	RU string `json:"ru"`
	UZ string `json:"uz"`
	EN string `json:"en"`
}

// Error is a JSON-RPC error object of the merchant protocol. Codes are
// fixed by the provider contract and never change between releases.
type Error struct {
	Code    int     `json:"code"`
	Message Message `json:"message"`
	Data    string  `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("paycom: %d %s", e.Code, e.Message.EN)
}

// WithData returns a copy of the error carrying the name of the
// offending request field.
func (e *Error) WithData(field string) *Error {
	cp := *e
	cp.Data = field
	return &cp
}

// IsBusiness reports whether the error belongs to the merchant bands
// (-31xxx). Those are expected in normal operation and logged at warn;
// the JSON-RPC reserved band (-32xxx) is logged at error.
func (e *Error) IsBusiness() bool {
	return e.Code > -32000
}

// JSON-RPC protocol band.
var (
	ErrParse = &Error{Code: -32700, Message: Message{
		RU: "Ошибка разбора JSON",
		UZ: "JSON tahlil qilishda xatolik",
		EN: "JSON parse error",
	}}
	ErrInvalidRequest = &Error{Code: -32600, Message: Message{
		RU: "Неверный RPC-запрос",
		UZ: "RPC so'rovi noto'g'ri",
		EN: "Invalid RPC request",
	}}
	ErrMethodNotFound = &Error{Code: -32601, Message: Message{
		RU: "Запрашиваемый метод не найден",
		UZ: "So'ralgan metod topilmadi",
		EN: "Method not found",
	}}
	ErrInternal = &Error{Code: -32400, Message: Message{
		RU: "Внутренняя ошибка сервера",
		UZ: "Serverda ichki xatolik",
		EN: "Internal server error",
	}}
	ErrInsufficientPrivilege = &Error{Code: -32504, Message: Message{
		RU: "Недостаточно привилегий для выполнения метода",
		UZ: "Metodni bajarish uchun huquqlar yetarli emas",
		EN: "Insufficient privilege to perform this method",
	}}
)

// Generic transaction band.
var (
	ErrInvalidAmount = &Error{Code: -31001, Message: Message{
		RU: "Неверная сумма",
		UZ: "Summa noto'g'ri",
		EN: "Invalid amount",
	}}
	ErrTransactionNotFound = &Error{Code: -31003, Message: Message{
		RU: "Транзакция не найдена",
		UZ: "Tranzaksiya topilmadi",
		EN: "Transaction not found",
	}}
	ErrUnableToCancel = &Error{Code: -31007, Message: Message{
		RU: "Невозможно отменить транзакцию",
		UZ: "Tranzaksiyani bekor qilib bo'lmaydi",
		EN: "Unable to cancel transaction",
	}}
	ErrUnableToPerform = &Error{Code: -31008, Message: Message{
		RU: "Невозможно выполнить операцию",
		UZ: "Amalni bajarib bo'lmaydi",
		EN: "Unable to perform operation",
	}}
)

// Merchant account band.
var (
	ErrUserNotFound = &Error{Code: -31050, Message: Message{
		RU: "Пользователь не найден",
		UZ: "Foydalanuvchi topilmadi",
		EN: "User not found",
	}}
	ErrInvalidOrderType = &Error{Code: -31051, Message: Message{
		RU: "Неверный тип заказа: укажите тариф или пакет минут",
		UZ: "Buyurtma turi noto'g'ri: tarif yoki daqiqa paketini ko'rsating",
		EN: "Invalid order type: exactly one of plan or package must be set",
	}}
	ErrPlanNotFound = &Error{Code: -31052, Message: Message{
		RU: "Тариф не найден",
		UZ: "Tarif topilmadi",
		EN: "Plan not found",
	}}
	ErrPackageNotFound = &Error{Code: -31053, Message: Message{
		RU: "Пакет минут не найден",
		UZ: "Daqiqa paketi topilmadi",
		EN: "Minute package not found",
	}}
	ErrOrderAlreadyPaid = &Error{Code: -31054, Message: Message{
		RU: "Заказ уже оплачен",
		UZ: "Buyurtma allaqachon to'langan",
		EN: "Order already paid",
	}}
	ErrOrderInProgress = &Error{Code: -31055, Message: Message{
		RU: "Заказ уже обрабатывается другой транзакцией",
		UZ: "Buyurtma boshqa tranzaksiyada qayta ishlanmoqda",
		EN: "Order is being processed by another transaction",
	}}
	ErrInvalidAccount = &Error{Code: -31056, Message: Message{
		RU: "Реквизиты счёта не совпадают с транзакцией",
		UZ: "Hisob rekvizitlari tranzaksiyaga mos kelmaydi",
		EN: "Account details do not match the transaction",
	}}
)
