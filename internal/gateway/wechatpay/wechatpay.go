package wechatpay

import (
	"bytes"
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/liveshop-next/internal/models"

	"github.com/shopspring/decimal"
	"github.com/wechatpay-apiv3/wechatpay-go/core/auth/verifiers"
	"github.com/wechatpay-apiv3/wechatpay-go/core/downloader"
	"github.com/wechatpay-apiv3/wechatpay-go/core/notify"
	"github.com/wechatpay-apiv3/wechatpay-go/services/payments"
)

var (
	ErrConfigInvalid    = errors.New("wechatpay config invalid")
	ErrRequestFailed    = errors.New("wechatpay request failed")
	ErrResponseInvalid  = errors.New("wechatpay response invalid")
	ErrSignatureInvalid = errors.New("wechatpay signature invalid")
)

// Config 微信支付商户配置
type Config struct {
	AppID              string
	MerchantID         string
	MerchantSerialNo   string
	MerchantPrivateKey string // PEM 私钥内容
	APIV3Key           string
}

// Notification 验签解密后的扣款通知（统一成对账输入）
type Notification struct {
	EventType     string
	OrderNo       string
	TransactionID string
	Success       bool
	Amount        models.Money
	Currency      string
	PaidAt        *time.Time
}

// Adapter 微信支付回调适配器
type Adapter struct {
	cfg *Config
}

// NewAdapter 创建适配器
func NewAdapter(cfg *Config) (*Adapter, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config missing", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.MerchantID) == "" ||
		strings.TrimSpace(cfg.MerchantSerialNo) == "" ||
		strings.TrimSpace(cfg.APIV3Key) == "" {
		return nil, fmt.Errorf("%w: merchant credentials missing", ErrConfigInvalid)
	}
	if _, err := parsePrivateKey(cfg.MerchantPrivateKey); err != nil {
		return nil, err
	}
	return &Adapter{cfg: cfg}, nil
}

// VerifyAndDecodeWebhook 平台证书验签并解密扣款通知
func (a *Adapter) VerifyAndDecodeWebhook(ctx context.Context, headers map[string]string, body []byte) (*Notification, error) {
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty webhook body", ErrResponseInvalid)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	privateKey, err := parsePrivateKey(a.cfg.MerchantPrivateKey)
	if err != nil {
		return nil, err
	}
	mgr := downloader.MgrInstance()
	if !mgr.HasDownloader(ctx, a.cfg.MerchantID) {
		if err := mgr.RegisterDownloaderWithPrivateKey(ctx, privateKey, a.cfg.MerchantSerialNo, a.cfg.MerchantID, a.cfg.APIV3Key); err != nil {
			return nil, fmt.Errorf("%w: register certificate downloader failed", ErrRequestFailed)
		}
	}

	verifier := verifiers.NewSHA256WithRSAVerifier(mgr.GetCertificateVisitor(a.cfg.MerchantID))
	handler, err := notify.NewRSANotifyHandler(a.cfg.APIV3Key, verifier)
	if err != nil {
		return nil, fmt.Errorf("%w: init notify handler failed", ErrConfigInvalid)
	}

	notifyReq, transaction, err := parseNotifyTransaction(ctx, handler, headers, body)
	if err != nil {
		return nil, err
	}

	amount := models.Money{}
	currency := ""
	if transaction.Amount != nil {
		if transaction.Amount.Total != nil {
			amount = models.NewMoneyFromDecimal(decimal.NewFromInt(*transaction.Amount.Total).Div(decimal.NewFromInt(100)))
		}
		currency = strings.ToUpper(strings.TrimSpace(pointerString(transaction.Amount.Currency)))
	}

	return &Notification{
		EventType:     strings.TrimSpace(notifyReq.EventType),
		OrderNo:       strings.TrimSpace(pointerString(transaction.OutTradeNo)),
		TransactionID: strings.TrimSpace(pointerString(transaction.TransactionId)),
		Success:       strings.EqualFold(pointerString(transaction.TradeState), "SUCCESS"),
		Amount:        amount,
		Currency:      currency,
		PaidAt:        parseSuccessTime(pointerString(transaction.SuccessTime)),
	}, nil
}

func parseNotifyTransaction(ctx context.Context, handler *notify.Handler, headers map[string]string, body []byte) (*notify.Request, *payments.Transaction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://notify.wechat.example/callback", bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: build webhook request failed", ErrResponseInvalid)
	}
	for key, value := range headers {
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}
		req.Header.Set(key, value)
	}

	content := new(payments.Transaction)
	notifyReq, err := handler.ParseNotifyRequest(ctx, req, content)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}
	return notifyReq, content, nil
}

func parsePrivateKey(raw string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(strings.TrimSpace(raw)))
	if block == nil {
		return nil, fmt.Errorf("%w: merchant private key is not PEM", ErrConfigInvalid)
	}
	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		if rsaKey, ok := key.(*rsa.PrivateKey); ok {
			return rsaKey, nil
		}
		return nil, fmt.Errorf("%w: merchant private key is not RSA", ErrConfigInvalid)
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	return nil, fmt.Errorf("%w: merchant private key parse failed", ErrConfigInvalid)
}

func parseSuccessTime(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t
	}
	return nil
}

func pointerString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
