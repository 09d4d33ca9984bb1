package services

import (
	"context"
	"encoding/json"

	"ovoz/internal/models/db_models"
	"ovoz/internal/models/request_models"
	"ovoz/internal/models/response_models"
	"ovoz/internal/repositories"
	"ovoz/pkg/utils"
)

type AccountServiceInterface interface {
	Login(request request_models.LoginRequest, ctx context.Context) (string, error)
	CreateAccount(request request_models.SignUpRequest) error
	GetProfile(ctx context.Context, accountID string) (*response_models.ProfileResponse, error)
}

type AccountService struct {
	accountRepo repositories.AccountRepository
}

func NewAccountService(accountRepo repositories.AccountRepository) AccountServiceInterface {
	return &AccountService{
		accountRepo: accountRepo,
	}
}

func (a *AccountService) Login(request request_models.LoginRequest, ctx context.Context) (string, error) {

	account, err := a.accountRepo.FindByEmail(ctx, request.Email)
	if err != nil {
		return "", utils.ErrDatabaseError
	}

	if account == nil {
		return "", utils.ErrAccountNotFound
	}

	err = utils.ComparePasswords(account.PasswordHash, request.Password)
	if err != nil {
		return "", utils.ErrInvalidCredentials
	}

	token, err := utils.CreateToken(account.ID, account.Role)
	if err != nil {
		return "", utils.ErrInvalidCredentials
	}

	return token, nil
}

func (a *AccountService) CreateAccount(request request_models.SignUpRequest) error {

	existingAccount, err := a.accountRepo.FindByEmail(context.Background(), request.Email)
	if err != nil {
		return utils.ErrDatabaseError
	}
	if existingAccount != nil {
		return utils.ErrEmailAlreadyExists
	}

	hashedPassword, err := utils.HashPassword(request.Password)
	if err != nil {
		return utils.ErrDatabaseError
	}

	memberID, err := utils.GenerateMemberID(6)
	if err != nil {
		return utils.ErrDatabaseError
	}

	newAccount := &db_models.Account{
		MemberID:     memberID,
		Name:         request.DisplayName,
		Email:        request.Email,
		PasswordHash: hashedPassword,
		Role:         "user", // default role
	}

	if err := a.accountRepo.InsertTx(newAccount, context.Background()); err != nil {
		return utils.ErrDatabaseError
	}

	return nil
}

func (a *AccountService) GetProfile(ctx context.Context, accountID string) (*response_models.ProfileResponse, error) {

	account, err := a.accountRepo.FindById(ctx, accountID)
	if err != nil {
		return nil, utils.ErrDatabaseError
	}
	if account == nil {
		return nil, utils.ErrAccountNotFound
	}

	profile := &response_models.ProfileResponse{
		MemberID:      account.MemberID,
		Name:          account.Name,
		Email:         account.Email,
		MinuteBalance: account.MinuteBalance,
	}

	if len(account.SubscriptionSnapshot) > 0 {
		var snapshot response_models.SubscriptionSnapshot
		if err := json.Unmarshal(account.SubscriptionSnapshot, &snapshot); err == nil && snapshot.Status != "" {
			profile.Subscription = &snapshot
		}
	}

	return profile, nil
}
