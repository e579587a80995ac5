// Package pit issues and verifies pre-identification tokens: short-lived
// signed credentials proving a customer completed the preparation
// checklist for one ticket.
package pit

import (
	"encoding/base64"
	"errors"
	"time"

	"fairq/queue-service/internal/store"

	"github.com/golang-jwt/jwt/v5"
	qrcode "github.com/skip2/go-qrcode"
)

const DefaultTTL = 2 * time.Hour

type Claims struct {
	TicketID           string `json:"ticket_id"`
	CustomerID         string `json:"customer_id"`
	ChecklistCompleted bool   `json:"checklist_completed"`
	jwt.RegisteredClaims
}

type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue signs a credential binding the ticket, its owner, and the
// checklist-completed assertion. The returned expiry is what must be
// persisted on the ticket's PIT record.
func (i *Issuer) Issue(ticketID, customerID string) (string, time.Time, error) {
	now := i.now().UTC()
	expiresAt := now.Add(i.ttl)
	claims := Claims{
		TicketID:           ticketID,
		CustomerID:         customerID,
		ChecklistCompleted: true,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// Verify checks signature, structure, and the embedded expiry. The
// ticket-level expiry recorded at generation time is checked separately
// by the store; both must pass.
func (i *Issuer) Verify(token string) (Claims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, store.ErrInvalidCredential
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, store.ErrPITExpired
		}
		return Claims{}, store.ErrInvalidCredential
	}
	if !parsed.Valid || claims.TicketID == "" || claims.CustomerID == "" {
		return Claims{}, store.ErrInvalidCredential
	}
	return claims, nil
}

// QRDataURL renders the credential as a PNG QR code data URL for display
// to the customer.
func QRDataURL(token string) (string, error) {
	png, err := qrcode.Encode(token, qrcode.Medium, 256)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
