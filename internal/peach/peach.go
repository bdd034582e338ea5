package peach

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Dhoini/Billing-service/internal/config"
	"github.com/Dhoini/Billing-service/internal/domain"
	"github.com/Dhoini/Billing-service/pkg/logger"
	"github.com/google/uuid"
)

// Client определяет методы для взаимодействия с Peach Payments API.
type Client interface {
	// InitiateCheckout создает hosted checkout для первичного платежа.
	InitiateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutResponse, error)

	// GetCheckoutStatus запрашивает результат платежа по ID чекаута.
	GetCheckoutStatus(ctx context.Context, checkoutID string) (*PaymentResult, error)

	// ChargeRecurring списывает средства по регистрационному токену.
	ChargeRecurring(ctx context.Context, registrationID string, amount float64, merchantTransactionID string) (*PaymentResult, error)

	// GetPaymentDetails возвращает детали проведенного платежа (карта, банк, токен).
	GetPaymentDetails(ctx context.Context, peachPaymentID string) (*PaymentResult, error)

	// Refund выполняет возврат средств по платежу.
	Refund(ctx context.Context, peachPaymentID string, amount float64) (*PaymentResult, error)

	// ValidateWebhookSignature проверяет подпись HMAC-SHA256 вебхука.
	ValidateWebhookSignature(params map[string]string, providedSignature string) bool
}

// CheckoutRequest параметры для инициации чекаута
type CheckoutRequest struct {
	UserID                uuid.UUID
	SubscriptionID        uuid.UUID
	Amount                float64
	PaymentMethod         domain.PaymentMethod
	MerchantTransactionID string
}

// CheckoutResponse результат инициации чекаута
type CheckoutResponse struct {
	CheckoutID            string
	MerchantTransactionID string
	Result                ResultCode
}

// CardDetails реквизиты карты из ответа шлюза
type CardDetails struct {
	Last4Digits string `json:"last4Digits"`
	ExpiryMonth string `json:"expiryMonth"`
	ExpiryYear  string `json:"expiryYear"`
}

// PaymentResult разобранный ответ шлюза на платежную операцию
type PaymentResult struct {
	ID                    string      `json:"id"`
	MerchantTransactionID string      `json:"merchantTransactionId"`
	RegistrationID        string      `json:"registrationId"`
	PaymentBrand          string      `json:"paymentBrand"`
	PaymentType           string      `json:"paymentType"`
	Amount                string      `json:"amount"`
	Currency              string      `json:"currency"`
	Result                ResultCode  `json:"result"`
	Card                  CardDetails `json:"card"`
	BankName              string      `json:"bankName"`
}

// Succeeded сообщает, что платеж прошел успешно
func (r *PaymentResult) Succeeded() bool {
	return r.Result.Succeeded()
}

// peachClient реализует интерфейс Client поверх REST API Peach Payments.
type peachClient struct {
	httpClient       *http.Client
	baseURL          string
	entityID         string
	accessToken      string
	secretKey        string
	notificationURL  string
	shopperResultURL string
	testMode         bool
	log              *logger.Logger
}

// NewClient создает новый экземпляр клиента Peach Payments.
func NewClient(cfg *config.Config, log *logger.Logger) Client {
	timeout := cfg.Peach.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &peachClient{
		httpClient:       &http.Client{Timeout: timeout},
		baseURL:          strings.TrimRight(cfg.Peach.BaseURL, "/"),
		entityID:         cfg.Peach.EntityID,
		accessToken:      cfg.Peach.AccessToken,
		secretKey:        cfg.Peach.SecretKey,
		notificationURL:  cfg.Peach.NotificationURL,
		shopperResultURL: cfg.Peach.ShopperResultURL,
		testMode:         !cfg.IsProduction(),
		log:              log,
	}
}

// InitiateCheckout создает hosted checkout. Параметры подписываются
// HMAC-SHA256 по отсортированной конкатенации ключ+значение.
func (c *peachClient) InitiateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutResponse, error) {
	// Ваучер одноразовый, чекаут шлюза для него не создается
	if req.PaymentMethod == domain.PaymentMethodVoucher {
		c.log.Infow("Voucher payment, skipping gateway checkout", "merchantTransactionID", req.MerchantTransactionID)
		return &CheckoutResponse{
			MerchantTransactionID: req.MerchantTransactionID,
			Result:                ResultCode{Code: CodeSuccess, Description: "Voucher applied"},
		}, nil
	}

	params := map[string]string{
		"amount":                    fmt.Sprintf("%.2f", req.Amount),
		"authentication.entityId":   c.entityID,
		"currency":                  domain.DefaultCurrency,
		"merchantTransactionId":     req.MerchantTransactionID,
		"nonce":                     uuid.New().String(),
		"notificationUrl":           c.notificationURL,
		"paymentType":               "DB",
		"shopperResultUrl":          c.shopperResultURL,
		"customParameters[user_id]": req.UserID.String(),
		"customParameters[subscription_id]": req.SubscriptionID.String(),
	}

	switch req.PaymentMethod {
	case domain.PaymentMethodCard:
		params["defaultPaymentMethod"] = "CARD"
		// Токенизация карты для будущих рекуррентных списаний
		params["createRegistration"] = "true"
	case domain.PaymentMethodEFT:
		if c.testMode {
			params["customParameters[enableTestMode]"] = "true"
		}
	case domain.PaymentMethodScanToPay:
		params["defaultPaymentMethod"] = "SCANTOPAY"
	}

	params["signature"] = Sign(params, c.secretKey)

	body, err := c.postForm(ctx, c.baseURL+"/checkout/initiate", params)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		CheckoutID string     `json:"checkoutId"`
		Result     ResultCode `json:"result"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("peach: failed to decode checkout response: %w", err)
	}
	if parsed.CheckoutID == "" {
		return nil, fmt.Errorf("%w: checkout response missing checkoutId (code %s)", domain.ErrPaymentFailed, parsed.Result.Code)
	}

	c.log.Infow("Peach checkout initiated", "checkoutID", parsed.CheckoutID, "merchantTransactionID", req.MerchantTransactionID)
	return &CheckoutResponse{
		CheckoutID:            parsed.CheckoutID,
		MerchantTransactionID: req.MerchantTransactionID,
		Result:                parsed.Result,
	}, nil
}

// GetCheckoutStatus запрашивает результат платежа по ID чекаута.
func (c *peachClient) GetCheckoutStatus(ctx context.Context, checkoutID string) (*PaymentResult, error) {
	endpoint := fmt.Sprintf("%s/v1/checkouts/%s/payment", c.baseURL, url.PathEscape(checkoutID))
	return c.getPaymentResult(ctx, endpoint)
}

// GetPaymentDetails возвращает детали проведенного платежа.
func (c *peachClient) GetPaymentDetails(ctx context.Context, peachPaymentID string) (*PaymentResult, error) {
	endpoint := fmt.Sprintf("%s/v1/payments/%s", c.baseURL, url.PathEscape(peachPaymentID))
	return c.getPaymentResult(ctx, endpoint)
}

// ChargeRecurring списывает средства по сохраненному регистрационному токену.
// Вызов ограничен таймаутом HTTP клиента: зависший шлюз трактуется
// вызывающей стороной как неуспешное списание.
func (c *peachClient) ChargeRecurring(ctx context.Context, registrationID string, amount float64, merchantTransactionID string) (*PaymentResult, error) {
	endpoint := fmt.Sprintf("%s/v1/registrations/%s/payments", c.baseURL, url.PathEscape(registrationID))

	params := map[string]string{
		"authentication.entityId":    c.entityID,
		"authentication.accessToken": c.accessToken,
		"amount":                     fmt.Sprintf("%.2f", amount),
		"currency":                   domain.DefaultCurrency,
		"paymentType":                "DB",
		"merchantTransactionId":      merchantTransactionID,
		"standingInstruction.mode":   "REPEATED",
		"standingInstruction.type":   "RECURRING",
		"standingInstruction.source": "MIT",
	}

	body, err := c.postForm(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}

	var result PaymentResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("peach: failed to decode recurring payment response: %w", err)
	}

	c.log.Infow("Peach recurring charge executed",
		"merchantTransactionID", merchantTransactionID,
		"resultCode", result.Result.Code)
	return &result, nil
}

// Refund выполняет возврат средств (paymentType RF).
func (c *peachClient) Refund(ctx context.Context, peachPaymentID string, amount float64) (*PaymentResult, error) {
	endpoint := fmt.Sprintf("%s/v1/payments/%s", c.baseURL, url.PathEscape(peachPaymentID))

	params := map[string]string{
		"authentication.entityId":    c.entityID,
		"authentication.accessToken": c.accessToken,
		"amount":                     fmt.Sprintf("%.2f", amount),
		"currency":                   domain.DefaultCurrency,
		"paymentType":                "RF",
	}

	body, err := c.postForm(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}

	var result PaymentResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("peach: failed to decode refund response: %w", err)
	}
	return &result, nil
}

// ValidateWebhookSignature проверяет подпись вебхука по параметрам формы.
func (c *peachClient) ValidateWebhookSignature(params map[string]string, providedSignature string) bool {
	if providedSignature == "" {
		return false
	}
	expected := Sign(params, c.secretKey)
	return hmacEqual(expected, providedSignature)
}

// getPaymentResult выполняет GET с аутентификацией entityId+accessToken.
func (c *peachClient) getPaymentResult(ctx context.Context, endpoint string) (*PaymentResult, error) {
	query := url.Values{}
	query.Set("authentication.entityId", c.entityID)
	query.Set("authentication.accessToken", c.accessToken)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("peach: failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.log.Errorw("Peach API request failed", "url", endpoint, "error", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrExternalServiceUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("peach: failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Errorw("Peach API returned error", "status", resp.StatusCode, "body", string(body))
		return nil, fmt.Errorf("%w: peach API status %d", domain.ErrExternalServiceUnavailable, resp.StatusCode)
	}

	var result PaymentResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("peach: failed to decode payment result: %w", err)
	}
	return &result, nil
}

// postForm отправляет form-encoded POST и возвращает тело ответа.
func (c *peachClient) postForm(ctx context.Context, endpoint string, params map[string]string) ([]byte, error) {
	form := url.Values{}
	for key, value := range params {
		form.Set(key, value)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("peach: failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.log.Errorw("Peach API request failed", "url", endpoint, "error", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrExternalServiceUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("peach: failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Errorw("Peach API returned error", "status", resp.StatusCode, "body", string(body))
		return nil, fmt.Errorf("%w: peach API status %d", domain.ErrExternalServiceUnavailable, resp.StatusCode)
	}

	return body, nil
}
