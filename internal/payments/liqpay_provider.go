package payments

import (
	"bytes"
	"context"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	domain "github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/domain"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/pricing"
)

const (
	defaultLiqPayCheckoutURL = "https://www.liqpay.ua/api/3/checkout"
	liqPayAPIVersion         = 3
)

// LiqPayProviderConfig configures the LiqPayProvider.
type LiqPayProviderConfig struct {
	PublicKey   string
	PrivateKey  string
	CheckoutURL string
	Sandbox     bool
	Logger      func(ctx context.Context, event string, fields map[string]any)
	Clock       func() time.Time
}

// LiqPayProvider builds signed LiqPay checkout forms and verifies server callbacks.
type LiqPayProvider struct {
	publicKey   string
	privateKey  string
	checkoutURL string
	sandbox     bool
	logger      func(ctx context.Context, event string, fields map[string]any)
	clock       func() time.Time
}

type liqPayCheckout struct {
	Version     int     `json:"version"`
	PublicKey   string  `json:"public_key"`
	Action      string  `json:"action"`
	Amount      string  `json:"amount"`
	Currency    string  `json:"currency"`
	Description string  `json:"description"`
	OrderID     string  `json:"order_id"`
	ResultURL   string  `json:"result_url,omitempty"`
	ServerURL   string  `json:"server_url,omitempty"`
	Language    string  `json:"language,omitempty"`
	Sandbox     *string `json:"sandbox,omitempty"`
}

type liqPayCallback struct {
	Status        string      `json:"status"`
	OrderID       string      `json:"order_id"`
	PaymentID     json.Number `json:"payment_id"`
	TransactionID json.Number `json:"transaction_id"`
	Amount        json.Number `json:"amount"`
	Currency      string      `json:"currency"`
	ErrCode       string      `json:"err_code"`
}

// NewLiqPayProvider validates the key pair and returns a provider.
func NewLiqPayProvider(cfg LiqPayProviderConfig) (*LiqPayProvider, error) {
	public := strings.TrimSpace(cfg.PublicKey)
	private := strings.TrimSpace(cfg.PrivateKey)
	if public == "" || private == "" {
		return nil, errors.New("liqpay: public and private keys are required")
	}
	checkoutURL := strings.TrimSpace(cfg.CheckoutURL)
	if checkoutURL == "" {
		checkoutURL = defaultLiqPayCheckoutURL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &LiqPayProvider{
		publicKey:   public,
		privateKey:  private,
		checkoutURL: checkoutURL,
		sandbox:     cfg.Sandbox,
		logger:      logger,
		clock:       func() time.Time { return clock().UTC() },
	}, nil
}

// CreateCheckoutSession returns a form POST redirect with the signed data payload.
func (p *LiqPayProvider) CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (CheckoutSession, error) {
	amount, err := pricing.ToMajorString(req.Amount, req.Currency)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("liqpay: %w", err)
	}
	payload := liqPayCheckout{
		Version:     liqPayAPIVersion,
		PublicKey:   p.publicKey,
		Action:      "pay",
		Amount:      amount,
		Currency:    strings.ToUpper(req.Currency),
		Description: defaultString(req.Description, "Order "+req.OrderNumber),
		OrderID:     req.OrderNumber,
		ResultURL:   req.SuccessURL,
		ServerURL:   req.NotifyURL,
		Language:    liqPayLanguage(req.Locale),
	}
	if p.sandbox {
		flag := "1"
		payload.Sandbox = &flag
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("liqpay: encode payload: %w", err)
	}
	data := base64.StdEncoding.EncodeToString(raw)

	p.logger(ctx, "payments.liqpay.session.created", map[string]any{
		"orderNumber": req.OrderNumber,
		"currency":    payload.Currency,
		"sandbox":     p.sandbox,
	})

	return CheckoutSession{
		ID:          req.OrderNumber,
		Provider:    "liqpay",
		RedirectURL: p.checkoutURL,
		Method:      http.MethodPost,
		FormFields: map[string]string{
			"data":      data,
			"signature": p.sign(data),
		},
		ExpiresAt: p.clock().Add(24 * time.Hour),
	}, nil
}

// ParseNotification verifies the data/signature pair posted by LiqPay.
func (p *LiqPayProvider) ParseNotification(_ context.Context, req NotificationRequest) (domain.PaymentNotification, error) {
	form, err := url.ParseQuery(string(bytes.TrimSpace(req.Body)))
	if err != nil {
		return domain.PaymentNotification{}, fmt.Errorf("%w: %v", ErrMalformedNotification, err)
	}
	data := form.Get("data")
	signature := form.Get("signature")
	if data == "" || signature == "" {
		return domain.PaymentNotification{}, fmt.Errorf("%w: data and signature are required", ErrMalformedNotification)
	}
	if subtle.ConstantTimeCompare([]byte(p.sign(data)), []byte(signature)) != 1 {
		return domain.PaymentNotification{}, ErrInvalidSignature
	}

	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return domain.PaymentNotification{}, fmt.Errorf("%w: %v", ErrMalformedNotification, err)
	}
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var callback liqPayCallback
	if err := decoder.Decode(&callback); err != nil {
		return domain.PaymentNotification{}, fmt.Errorf("%w: %v", ErrMalformedNotification, err)
	}
	if strings.TrimSpace(callback.Status) == "" {
		return domain.PaymentNotification{}, fmt.Errorf("%w: status is required", ErrMalformedNotification)
	}

	notification := domain.PaymentNotification{
		Reference:        callback.PaymentID.String(),
		CorrelationToken: strings.TrimSpace(callback.OrderID),
		RawStatus:        callback.Status,
		Currency:         strings.ToUpper(strings.TrimSpace(callback.Currency)),
		EventID:          callback.TransactionID.String(),
		ReceivedAt:       req.ReceivedAt,
		Payload:          raw,
	}
	if callback.Amount != "" && notification.Currency != "" {
		amount, err := pricing.ToMinorUnits(callback.Amount.String(), notification.Currency)
		if err != nil {
			return domain.PaymentNotification{}, fmt.Errorf("%w: amount: %v", ErrMalformedNotification, err)
		}
		notification.Amount = &amount
	}
	if notification.Reference == "" && notification.CorrelationToken == "" {
		return domain.PaymentNotification{}, fmt.Errorf("%w: no payment reference", ErrMalformedNotification)
	}
	return notification, nil
}

// sign computes base64(sha1(private + data + private)).
func (p *LiqPayProvider) sign(data string) string {
	sum := sha1.Sum([]byte(p.privateKey + data + p.privateKey))
	return base64.StdEncoding.EncodeToString(sum[:])
}

func liqPayLanguage(locale string) string {
	lang, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(locale)), "-")
	lang, _, _ = strings.Cut(lang, "_")
	switch lang {
	case "uk", "en":
		return lang
	case "ua":
		return "uk"
	default:
		return ""
	}
}
