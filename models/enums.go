package models

import (
	"encoding/json"
	"errors"
)

type CatalogOfferStatus string

const (
	CatalogOfferStatusActive      CatalogOfferStatus = "ACTIVE"
	CatalogOfferStatusNegotiating CatalogOfferStatus = "NEGOTIATING"
	CatalogOfferStatusAccepted    CatalogOfferStatus = "ACCEPTED"
	CatalogOfferStatusRejected    CatalogOfferStatus = "REJECTED"
	CatalogOfferStatusExpired     CatalogOfferStatus = "EXPIRED"
)

// ModifiableOfferStatuses are the only states in which a seller may act on
// an offer. ACTIVE and NEGOTIATING may oscillate during bargaining; the
// other three are terminal.
var ModifiableOfferStatuses = []CatalogOfferStatus{
	CatalogOfferStatusActive,
	CatalogOfferStatusNegotiating,
}

func (s CatalogOfferStatus) IsTerminal() bool {
	switch s {
	case CatalogOfferStatusAccepted, CatalogOfferStatusRejected, CatalogOfferStatusExpired:
		return true
	}
	return false
}

func (s *CatalogOfferStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return errors.New("catalog offer status must be string")
	}
	switch CatalogOfferStatus(str) {
	case CatalogOfferStatusActive, CatalogOfferStatusNegotiating, CatalogOfferStatusAccepted,
		CatalogOfferStatusRejected, CatalogOfferStatusExpired:
		*s = CatalogOfferStatus(str)
	default:
		return errors.New("invalid catalog offer status")
	}
	return nil
}

type OfferItemStatus string

const (
	OfferItemStatusActive  OfferItemStatus = "ACTIVE"
	OfferItemStatusRemoved OfferItemStatus = "REMOVED"
)

type NegotiationStatus string

const (
	NegotiationStatusPending   NegotiationStatus = "PENDING"
	NegotiationStatusCountered NegotiationStatus = "COUNTERED"
	NegotiationStatusAccepted  NegotiationStatus = "ACCEPTED"
	NegotiationStatusRejected  NegotiationStatus = "REJECTED"
)

type NegotiationActionType string

const (
	NegotiationActionOffer        NegotiationActionType = "OFFER"
	NegotiationActionCounterOffer NegotiationActionType = "COUNTER_OFFER"
	NegotiationActionAccept       NegotiationActionType = "ACCEPT"
	NegotiationActionReject       NegotiationActionType = "REJECT"
)

type CatalogListingStatus string

const (
	CatalogListingStatusActive   CatalogListingStatus = "ACTIVE"
	CatalogListingStatusInactive CatalogListingStatus = "INACTIVE"
	CatalogListingStatusArchived CatalogListingStatus = "ARCHIVED"
)

type VerificationStatus string

const (
	VerificationStatusPending  VerificationStatus = "PENDING"
	VerificationStatusVerified VerificationStatus = "VERIFIED"
	VerificationStatusRejected VerificationStatus = "REJECTED"
)

type ImportAuditStatus string

const (
	ImportAuditStatusSucceeded ImportAuditStatus = "SUCCEEDED"
	ImportAuditStatusFailed    ImportAuditStatus = "FAILED"
)
