package payment

import (
	"bytes"
	"context"
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"storefront-service/config"
	"storefront-service/internal/apperr"
	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"go.uber.org/zap"
)

const (
	p24SandboxHost = "https://sandbox.przelewy24.pl"
	p24SecureHost  = "https://secure.przelewy24.pl"
	p24BlikMethod  = 181
)

var blikCodePattern = regexp.MustCompile(`^[0-9]{6}$`)

// ValidBlikCode reports whether code has the 6-digit BLIK format
func ValidBlikCode(code string) bool {
	return blikCodePattern.MatchString(code)
}

// BlikGateway talks to Przelewy24, which provides BLIK
type BlikGateway struct {
	cfg        config.BlikConfig
	host       string
	appURL     string
	httpClient *http.Client
}

func NewBlikGateway(cfg config.BlikConfig, appURL string, httpClient *http.Client) *BlikGateway {
	host := p24SecureHost
	if cfg.Sandbox {
		host = p24SandboxHost
	}
	return &BlikGateway{cfg: cfg, host: host, appURL: appURL, httpClient: httpClient}
}

// WithHost points the adapter at another Przelewy24 host
func (g *BlikGateway) WithHost(host string) *BlikGateway {
	g.host = strings.TrimRight(host, "/")
	return g
}

func (g *BlikGateway) Name() string { return models.PaymentMethodBlik }

// sign is md5(merchantId|posId|sessionId|amount|currency|crc) in hex
func (g *BlikGateway) sign(sessionID, amount, currency string) string {
	sum := md5.Sum([]byte(strings.Join([]string{
		g.cfg.MerchantID, g.cfg.PosID, sessionID, amount, currency, g.cfg.CRC,
	}, "|")))
	return hex.EncodeToString(sum[:])
}

type p24Envelope struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

func (g *BlikGateway) call(ctx context.Context, method, path string, payload interface{}, out interface{}) error {
	start := time.Now()
	defer func() {
		util.GatewayRequestLatency.WithLabelValues(g.Name(), strings.ToLower(method)+" "+path).
			Observe(time.Since(start).Seconds())
	}()

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, g.host+"/api/v1"+path, bytes.NewReader(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(g.cfg.PosID, g.cfg.APIKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: failed to reach przelewy24: %v", apperr.ErrGateway, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	var env p24Envelope
	_ = json.Unmarshal(body, &env)

	if resp.StatusCode != http.StatusOK {
		msg := env.Error
		if msg == "" {
			msg = string(body)
		}
		return fmt.Errorf("%w: przelewy24 %s %s (%d): %s", apperr.ErrGateway, method, path, resp.StatusCode, msg)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: failed to parse przelewy24 response: %v", apperr.ErrGateway, err)
	}
	return nil
}

// RegisterTransaction registers a BLIK transaction keyed by the order id. A
// code given at checkout is submitted right away.
func (g *BlikGateway) RegisterTransaction(ctx context.Context, req RegisterRequest) (*Registration, error) {
	if req.BlikCode != "" && !ValidBlikCode(req.BlikCode) {
		return nil, apperr.Validation("BLIK code must be 6 digits")
	}

	merchantID, _ := strconv.Atoi(g.cfg.MerchantID)
	posID, _ := strconv.Atoi(g.cfg.PosID)
	amount := strconv.FormatInt(minorUnits(req.Amount), 10)

	payload := map[string]interface{}{
		"merchantId":  merchantID,
		"posId":       posID,
		"sessionId":   req.OrderID,
		"amount":      minorUnits(req.Amount),
		"currency":    req.Currency,
		"description": "Order " + req.OrderNumber,
		"email":       req.CustomerEmail,
		"client":      req.CustomerName,
		"country":     "PL",
		"language":    "pl",
		"urlReturn":   g.appURL + "/checkout/success?order_id=" + req.OrderID,
		"urlStatus":   g.appURL + "/api/v1/webhooks/blik",
		"method":      p24BlikMethod,
		"sign":        g.sign(req.OrderID, amount, req.Currency),
	}

	var data struct {
		Token string `json:"token"`
	}
	if err := g.call(ctx, http.MethodPost, "/transaction/register", payload, &data); err != nil {
		return nil, err
	}
	if data.Token == "" {
		return nil, fmt.Errorf("%w: przelewy24 returned empty token", apperr.ErrGateway)
	}

	reg := &Registration{
		TransactionID:    data.Token,
		Token:            data.Token,
		RedirectURL:      g.host + "/trnRequest/" + data.Token,
		RequiresBlikCode: req.BlikCode == "",
	}

	if req.BlikCode != "" {
		if err := g.AuthorizeCode(ctx, data.Token, req.BlikCode); err != nil {
			util.GetLogger().Warn("BLIK code rejected at checkout, shopper can retry",
				zap.String("order_id", req.OrderID), zap.Error(err))
			reg.RequiresBlikCode = true
		}
	}
	return reg, nil
}

// AuthorizeCode submits the shopper's 6-digit BLIK code for a registered transaction
func (g *BlikGateway) AuthorizeCode(ctx context.Context, token, code string) error {
	if !ValidBlikCode(code) {
		return apperr.Validation("BLIK code must be 6 digits")
	}
	return g.call(ctx, http.MethodPut, "/transaction/by/token/"+token,
		map[string]string{"methodRefId": code}, nil)
}

// blikNotification is the urlStatus callback body. Numeric fields arrive as
// numbers or strings depending on the environment.
type blikNotification struct {
	MerchantID json.Number `json:"merchantId"`
	PosID      json.Number `json:"posId"`
	SessionID  string      `json:"sessionId"`
	Amount     json.Number `json:"amount"`
	Currency   string      `json:"currency"`
	OrderID    json.Number `json:"orderId"`
	MethodID   json.Number `json:"methodId"`
	Statement  string      `json:"statement"`
	Sign       string      `json:"sign"`
}

func (g *BlikGateway) VerifyNotification(ctx context.Context, _ http.Header, body []byte) (*Notification, error) {
	var notif blikNotification
	if err := json.Unmarshal(body, &notif); err != nil {
		return nil, fmt.Errorf("%w: malformed notification: %v", apperr.ErrInvalidSignature, err)
	}

	expected := g.sign(notif.SessionID, notif.Amount.String(), notif.Currency)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(notif.Sign))) != 1 {
		return nil, apperr.ErrInvalidSignature
	}

	n := &Notification{
		Gateway:       g.Name(),
		EventID:       fmt.Sprintf("p24-%s-%s", notif.OrderID.String(), notif.Statement),
		EventType:     "blik." + notif.Statement,
		OrderID:       notif.SessionID,
		TransactionID: notif.OrderID.String(),
		Outcome:       OutcomeIgnored,
	}

	switch notif.Statement {
	case "success":
		if err := g.verifyTransaction(ctx, notif); err != nil {
			return nil, err
		}
		n.Outcome = OutcomeSuccess
	case "failure":
		n.Outcome = OutcomeFailure
	}
	return n, nil
}

// verifyTransaction confirms a success callback server-to-server before it is trusted
func (g *BlikGateway) verifyTransaction(ctx context.Context, notif blikNotification) error {
	merchantID, _ := strconv.Atoi(g.cfg.MerchantID)
	posID, _ := strconv.Atoi(g.cfg.PosID)
	amount, _ := notif.Amount.Int64()
	p24OrderID, _ := notif.OrderID.Int64()

	payload := map[string]interface{}{
		"merchantId": merchantID,
		"posId":      posID,
		"sessionId":  notif.SessionID,
		"amount":     amount,
		"currency":   notif.Currency,
		"orderId":    p24OrderID,
		"sign":       g.sign(notif.SessionID, notif.Amount.String(), notif.Currency),
	}

	var data struct {
		Status string `json:"status"`
	}
	if err := g.call(ctx, http.MethodPut, "/transaction/verify", payload, &data); err != nil {
		return err
	}
	if data.Status != "success" {
		return fmt.Errorf("%w: przelewy24 verify returned %q", apperr.ErrGateway, data.Status)
	}
	return nil
}
