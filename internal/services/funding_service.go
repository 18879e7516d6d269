package services

import (
	"context"
	"errors"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/virtualwallet/backend/internal/bankcards"
	"github.com/virtualwallet/backend/internal/hsm"
	"github.com/virtualwallet/backend/internal/models"
	"go.uber.org/zap"
)

// CardFunding is the bank behind linked cards.
type CardFunding interface {
	Lookup(ctx context.Context, card models.CardDetails) (*bankcards.CardLookup, error)
	Withdraw(ctx context.Context, lookupHash string, amount decimal.Decimal, currencyCode string) (*bankcards.Transfer, error)
	Deposit(ctx context.Context, lookupHash string, amount decimal.Decimal, currencyCode string) (*bankcards.Transfer, error)
}

// FundingRequest moves money between a linked card and the wallet.
type FundingRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// FundingReceipt is what the wallet side of a card transfer looked like.
type FundingReceipt struct {
	CardID       int64           `json:"card_id"`
	Direction    string          `json:"direction"`
	Amount       decimal.Decimal `json:"amount"`
	CurrencyCode string          `json:"currency_code"`
	Balance      decimal.Decimal `json:"balance"`
}

const (
	DirectionTopUp   = "card_to_wallet"
	DirectionDeposit = "wallet_to_card"
)

// FundingService tops the wallet up from a linked card and pays wallet money
// out to one. The bank call and the balance update cannot share a database
// transaction, so a failure after the first leg is compensated on the other side.
type FundingService struct {
	cards     *CardService
	bank      CardFunding
	ledger    *LedgerService
	converter Converter
	audit     *hsm.AuditLogger
	logger    *zap.Logger
}

func NewFundingService(cards *CardService, bank CardFunding, ledger *LedgerService, converter Converter, audit *hsm.AuditLogger, logger *zap.Logger) *FundingService {
	return &FundingService{
		cards:     cards,
		bank:      bank,
		ledger:    ledger,
		converter: converter,
		audit:     audit,
		logger:    logger,
	}
}

func checkFundingAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return &ErrValidation{Field: "amount", Message: "must be greater than zero"}
	}
	if !hasCents(amount) {
		return &ErrValidation{Field: "amount", Message: "at most two decimal places"}
	}
	return nil
}

// TopUpFromCard withdraws amount, in the wallet's currency, from cardID and
// credits it to userID's balance.
func (s *FundingService) TopUpFromCard(ctx context.Context, userID, cardID int64, amount decimal.Decimal) (*FundingReceipt, error) {
	if err := checkFundingAmount(amount); err != nil {
		return nil, err
	}
	wallet, err := s.ledger.loadAccount(ctx, "id", userID, strconv.FormatInt(userID, 10))
	if err != nil {
		return nil, err
	}
	if wallet.IsBlocked {
		return nil, &ErrAccountBlocked{UserID: userID}
	}

	lookup, err := s.lookup(ctx, userID, cardID)
	if err != nil {
		return nil, err
	}

	transfer, err := s.bank.Withdraw(ctx, lookup.Hash, amount, wallet.CurrencyCode)
	if err != nil {
		return nil, bankError(err, cardID)
	}

	credit := transfer.Amount
	if transfer.CurrencyCode != "" && transfer.CurrencyCode != wallet.CurrencyCode {
		credit, err = s.converter.Convert(ctx, transfer.Amount, transfer.CurrencyCode, wallet.CurrencyCode)
		if err == nil && !credit.IsPositive() {
			err = errTooSmallToConvert
		}
		if err != nil {
			s.returnToCard(ctx, userID, cardID, lookup.Hash, transfer)
			var validation *ErrValidation
			if errors.As(err, &validation) {
				return nil, err
			}
			return nil, conversionError(err, transfer.CurrencyCode, wallet.CurrencyCode)
		}
	}

	if err := s.ledger.TopUp(ctx, userID, credit, wallet.CurrencyCode); err != nil {
		s.returnToCard(ctx, userID, cardID, lookup.Hash, transfer)
		return nil, err
	}

	s.audit.LogOperation("CARD_TOPUP", userID, "TOPUP_FROM_CARD",
		"card "+strconv.FormatInt(cardID, 10)+" "+credit.StringFixed(2)+" "+wallet.CurrencyCode)
	return &FundingReceipt{
		CardID:       cardID,
		Direction:    DirectionTopUp,
		Amount:       credit,
		CurrencyCode: wallet.CurrencyCode,
		Balance:      wallet.Balance.Add(credit),
	}, nil
}

// DepositToCard debits amount from userID's balance and pays it onto cardID.
// The wallet is refunded when the bank does not accept the deposit.
func (s *FundingService) DepositToCard(ctx context.Context, userID, cardID int64, amount decimal.Decimal) (*FundingReceipt, error) {
	if err := checkFundingAmount(amount); err != nil {
		return nil, err
	}
	wallet, err := s.ledger.loadAccount(ctx, "id", userID, strconv.FormatInt(userID, 10))
	if err != nil {
		return nil, err
	}
	if wallet.IsBlocked {
		return nil, &ErrAccountBlocked{UserID: userID}
	}
	if wallet.Balance.LessThan(amount) {
		return nil, &ErrInsufficientFunds{Available: wallet.Balance, Required: amount}
	}

	lookup, err := s.lookup(ctx, userID, cardID)
	if err != nil {
		return nil, err
	}

	if err := s.ledger.Withdraw(ctx, userID, amount, wallet.CurrencyCode); err != nil {
		return nil, err
	}

	if _, err := s.bank.Deposit(ctx, lookup.Hash, amount, wallet.CurrencyCode); err != nil {
		refundCtx := context.WithoutCancel(ctx)
		if refundErr := s.ledger.TopUp(refundCtx, userID, amount, wallet.CurrencyCode); refundErr != nil {
			s.audit.LogError("CARD_DEPOSIT_REFUND_FAILED", 0, userID, refundErr)
			s.logger.Error("wallet not refunded after failed card deposit",
				zap.Int64("user_id", userID),
				zap.Int64("card_id", cardID),
				zap.String("amount", amount.StringFixed(2)),
				zap.Error(refundErr))
		}
		return nil, bankError(err, cardID)
	}

	s.audit.LogOperation("CARD_DEPOSIT", userID, "DEPOSIT_TO_CARD",
		"card "+strconv.FormatInt(cardID, 10)+" "+amount.StringFixed(2)+" "+wallet.CurrencyCode)
	return &FundingReceipt{
		CardID:       cardID,
		Direction:    DirectionDeposit,
		Amount:       amount,
		CurrencyCode: wallet.CurrencyCode,
		Balance:      wallet.Balance.Sub(amount),
	}, nil
}

func (s *FundingService) lookup(ctx context.Context, userID, cardID int64) (*bankcards.CardLookup, error) {
	card, err := s.cards.usable(ctx, userID, cardID)
	if err != nil {
		return nil, err
	}
	lookup, err := s.bank.Lookup(ctx, *card)
	if err != nil {
		return nil, bankError(err, cardID)
	}
	return lookup, nil
}

// returnToCard puts a card withdrawal back after the wallet credit failed.
func (s *FundingService) returnToCard(ctx context.Context, userID, cardID int64, lookupHash string, t *bankcards.Transfer) {
	_, err := s.bank.Deposit(context.WithoutCancel(ctx), lookupHash, t.Amount, t.CurrencyCode)
	if err == nil {
		return
	}
	s.audit.LogError("CARD_TOPUP_RETURN_FAILED", 0, userID, err)
	s.logger.Error("card withdrawal not returned after failed wallet credit",
		zap.Int64("user_id", userID),
		zap.Int64("card_id", cardID),
		zap.String("amount", t.Amount.StringFixed(2)),
		zap.String("currency", t.CurrencyCode),
		zap.Error(err))
}

func bankError(err error, cardID int64) error {
	switch {
	case errors.Is(err, bankcards.ErrCardNotFound):
		return &ErrNotFound{Resource: "bank card", ID: strconv.FormatInt(cardID, 10)}
	case errors.Is(err, bankcards.ErrInsufficientFunds):
		return &ErrInvalidState{Reason: "card has insufficient funds"}
	case errors.Is(err, bankcards.ErrRejected):
		return &ErrInvalidState{Reason: err.Error()}
	default:
		return &ErrExternalService{Service: "bank cards", Err: err}
	}
}
