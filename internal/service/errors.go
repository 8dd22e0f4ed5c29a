package service

import (
	"errors"
	"fmt"
	"strings"

	"sales-service/internal/models"
)

var (
	// ErrDuplicateClient signals an email or CPF/CNPJ already in use.
	ErrDuplicateClient = errors.New("client with this email or document already exists")

	// ErrPriceLocked signals a price edit attempted after the proposal
	// left the quote stage.
	ErrPriceLocked = errors.New("line item prices are locked once the proposal is sent")

	// ErrValidation wraps request-shape problems found past binding.
	ErrValidation = errors.New("validation failed")

	// ErrUpstream wraps ERP failures so the API layer can answer 502.
	ErrUpstream = errors.New("upstream service failed")
)

// IllegalTransitionError reports a status move the transition table
// forbids.
type IllegalTransitionError struct {
	From, To models.OrderStatus
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal status transition: %s -> %s", e.From, e.To)
}

// PriceListInUseError blocks deletion of a referenced price list and
// names the clients still pointing at it.
type PriceListInUseError struct {
	Clients []string
}

func (e *PriceListInUseError) Error() string {
	return fmt.Sprintf("price list is referenced by clients: %s",
		strings.Join(e.Clients, ", "))
}
