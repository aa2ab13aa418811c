package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/stocklot/marketplace_backend/config"
	"github.com/stocklot/marketplace_backend/utils"
	"gorm.io/gorm"
)

type User struct {
	ID         int       `gorm:"primary_key" json:"id"`
	PublicId   string    `gorm:"uniqueIndex;size:14;not null" json:"public_id"`
	CognitoSub string    `gorm:"uniqueIndex;size:64;not null" json:"cognito_sub"`
	Username   string    `gorm:"index;size:100;not null" json:"username"`
	Email      string    `gorm:"index;size:255;not null" json:"email"`
	FirstName  string    `gorm:"size:100" json:"first_name"`
	LastName   string    `gorm:"size:100" json:"last_name"`
	IsActive   *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	BuyerProfile  *BuyerProfile  `json:"buyer_profile,omitempty"`
	SellerProfile *SellerProfile `json:"seller_profile,omitempty"`
}

type BuyerProfile struct {
	ID                 int                `gorm:"primary_key" json:"id"`
	PublicId           string             `gorm:"uniqueIndex;size:14;not null" json:"public_id"`
	UserId             int                `gorm:"uniqueIndex;not null" json:"user_id"`
	CompanyName        string             `gorm:"size:255" json:"company_name"`
	Phone              string             `gorm:"size:32" json:"phone"`
	VerificationStatus VerificationStatus `gorm:"size:20;not null;default:'PENDING'" json:"verification_status"`
	AccountLocked      *bool              `gorm:"not null;default:false" json:"account_locked"`
	RiskScore          *int               `json:"risk_score"`
	CreatedAt          time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

type SellerProfile struct {
	ID          int       `gorm:"primary_key" json:"id"`
	PublicId    string    `gorm:"uniqueIndex;size:14;not null" json:"public_id"`
	UserId      int       `gorm:"uniqueIndex;not null" json:"user_id"`
	CompanyName string    `gorm:"size:255" json:"company_name"`
	Phone       string    `gorm:"size:32" json:"phone"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// MaxImportRiskScore is the highest buyer risk score still allowed to submit
// offers through the import pipeline.
const MaxImportRiskScore = 80

// DeriveDisplayName is the single display-name rule used for both sides of
// an offer: company name, else "first last" trimmed, else username.
func DeriveDisplayName(companyName, firstName, lastName, username string) string {
	if strings.TrimSpace(companyName) != "" {
		return strings.TrimSpace(companyName)
	}
	fullName := strings.TrimSpace(strings.TrimSpace(firstName) + " " + strings.TrimSpace(lastName))
	if fullName != "" {
		return fullName
	}
	return username
}

func (u *User) BuyerDisplayName() string {
	companyName := ""
	if u.BuyerProfile != nil {
		companyName = u.BuyerProfile.CompanyName
	}
	return DeriveDisplayName(companyName, u.FirstName, u.LastName, u.Username)
}

func (u *User) SellerDisplayName() string {
	companyName := ""
	if u.SellerProfile != nil {
		companyName = u.SellerProfile.CompanyName
	}
	return DeriveDisplayName(companyName, u.FirstName, u.LastName, u.Username)
}

// GetUserByCognitoSub resolves an identity-provider subject to a user with
// the buyer profile preloaded. Returns nil (no error) when no user matches.
func GetUserByCognitoSub(ctx context.Context, cognitoSub string) (*User, error) {
	db := config.GetDB()
	var user User
	err := db.WithContext(ctx).Preload("BuyerProfile").Preload("SellerProfile").
		Where("cognito_sub = ?", cognitoSub).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

type NewBuyerProfile struct {
	CompanyName string `json:"company_name"`
	Phone       string `json:"phone"`
}

func (input *NewBuyerProfile) validate() error {
	if input.Phone != "" {
		if err := utils.ValidatePhoneNumber(input.Phone, utils.CountryCode); err != nil {
			return err
		}
	}
	return nil
}

func CreateBuyerProfile(ctx context.Context, userId int, input *NewBuyerProfile) (*BuyerProfile, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	if err := utils.ValidateResourceId[User](ctx, userId); err != nil {
		return nil, err
	}

	profile := BuyerProfile{
		PublicId:           utils.GeneratePublicId(),
		UserId:             userId,
		CompanyName:        input.CompanyName,
		Phone:              input.Phone,
		VerificationStatus: VerificationStatusPending,
		AccountLocked:      utils.NewFalse(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

func CreateSellerProfile(ctx context.Context, userId int, companyName string, phone string) (*SellerProfile, error) {
	if phone != "" {
		if err := utils.ValidatePhoneNumber(phone, utils.CountryCode); err != nil {
			return nil, err
		}
	}
	if err := utils.ValidateResourceId[User](ctx, userId); err != nil {
		return nil, err
	}

	profile := SellerProfile{
		PublicId:    utils.GeneratePublicId(),
		UserId:      userId,
		CompanyName: companyName,
		Phone:       phone,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}
