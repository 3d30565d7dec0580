package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SscSPs/deck_credits/internal/apperrors"
	"github.com/SscSPs/deck_credits/internal/core/domain"
	"github.com/SscSPs/deck_credits/internal/dto"
	"github.com/SscSPs/deck_credits/internal/handlers"
	"github.com/SscSPs/deck_credits/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type CreditHandlerTestSuite struct {
	suite.Suite
	router            *gin.Engine
	mockCreditService *MockCreditService
	userID            string
	token             string
}

func (suite *CreditHandlerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	suite.router = gin.New()
	suite.router.Use(middleware.AuthMiddleware(testJWTSecret, ""))

	suite.mockCreditService = new(MockCreditService)
	v1 := suite.router.Group("/api/v1")
	handlers.RegisterCreditRoutes(v1, suite.mockCreditService)

	suite.userID = uuid.NewString()
	token, err := generateTestToken(testJWTSecret, suite.userID)
	suite.Require().NoError(err)
	suite.token = token
}

func (suite *CreditHandlerTestSuite) TearDownTest() {
	suite.mockCreditService.AssertExpectations(suite.T())
}

func (suite *CreditHandlerTestSuite) do(method, url string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		suite.Require().NoError(err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, _ := http.NewRequest(method, url, reader)
	req.Header.Set("Authorization", "Bearer "+suite.token)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func (suite *CreditHandlerTestSuite) TestCharge_Success() {
	txnID := uuid.NewString()
	suite.mockCreditService.On("WithCreditCheck",
		mock.AnythingOfType("*context.valueCtx"),
		suite.userID,
		domain.ActionPresentationCreate,
		map[string]any{"presentation_id": "p1"},
	).Return(&domain.ChargeOutcome{
		Success:     true,
		NewBalance:  90,
		Required:    10,
		Transaction: &domain.Transaction{TransactionID: txnID},
	}, nil).Once()

	w := suite.do(http.MethodPost, "/api/v1/credits/charge", dto.ChargeCreditsRequest{
		Action:   "presentation_create",
		Metadata: map[string]any{"presentation_id": "p1"},
	})

	suite.Equal(http.StatusOK, w.Code)
	var resp dto.ChargeCreditsResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.True(resp.Success)
	suite.Equal(int64(90), resp.CreditsRemaining)
	suite.Equal(txnID, resp.TransactionID)
}

func (suite *CreditHandlerTestSuite) TestCharge_InsufficientCredits() {
	suite.mockCreditService.On("WithCreditCheck", mock.Anything, suite.userID, domain.ActionPresentationCreate, mock.Anything).
		Return(&domain.ChargeOutcome{
			Success:        false,
			CurrentBalance: 4,
			Required:       10,
			Reason:         domain.ChargeFailureInsufficientCredits,
		}, nil).Once()

	w := suite.do(http.MethodPost, "/api/v1/credits/charge", dto.ChargeCreditsRequest{Action: "presentation_create"})

	suite.Equal(http.StatusPaymentRequired, w.Code)
	var resp dto.InsufficientCreditsResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.Equal("Insufficient credits", resp.Error)
	suite.Equal(int64(10), resp.CreditsRequired)
	suite.Equal(int64(4), resp.CurrentBalance)
}

func (suite *CreditHandlerTestSuite) TestCharge_UnknownAction() {
	suite.mockCreditService.On("WithCreditCheck", mock.Anything, suite.userID, domain.ActionType("video_render"), mock.Anything).
		Return(nil, fmt.Errorf("%w: %w: video_render", apperrors.ErrValidation, apperrors.ErrUnsupportedActionType)).Once()

	w := suite.do(http.MethodPost, "/api/v1/credits/charge", dto.ChargeCreditsRequest{Action: "video_render"})

	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *CreditHandlerTestSuite) TestCharge_StoreUnavailable() {
	suite.mockCreditService.On("WithCreditCheck", mock.Anything, suite.userID, domain.ActionChatMessage, mock.Anything).
		Return(nil, apperrors.Unavailable("debit credits", fmt.Errorf("connection reset"))).Once()

	w := suite.do(http.MethodPost, "/api/v1/credits/charge", dto.ChargeCreditsRequest{Action: "chat_message"})

	suite.Equal(http.StatusInternalServerError, w.Code)
	suite.NotContains(w.Body.String(), "connection reset")
}

func (suite *CreditHandlerTestSuite) TestCharge_MissingAction() {
	w := suite.do(http.MethodPost, "/api/v1/credits/charge", map[string]any{"metadata": map[string]any{}})
	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *CreditHandlerTestSuite) TestCharge_Unauthorized() {
	req, _ := http.NewRequest(http.MethodPost, "/api/v1/credits/charge", bytes.NewBufferString(`{"action":"chat_message"}`))
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	suite.Equal(http.StatusUnauthorized, w.Code)
	suite.mockCreditService.AssertNotCalled(suite.T(), "WithCreditCheck")
}

func (suite *CreditHandlerTestSuite) TestRefund_PassesTransactionID() {
	debitID := uuid.NewString()
	suite.mockCreditService.On("Refund",
		mock.AnythingOfType("*context.valueCtx"),
		suite.userID,
		domain.ActionSlideGenerate,
		debitID,
		map[string]any(nil),
	).Return(&domain.AddOutcome{Success: true, NewBalance: 15}, nil).Once()

	w := suite.do(http.MethodPost, "/api/v1/credits/refund", dto.RefundCreditsRequest{
		Action:        "slide_generate",
		TransactionID: debitID,
	})

	suite.Equal(http.StatusOK, w.Code)
	var resp dto.ChargeCreditsResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.Equal(int64(15), resp.CreditsRemaining)
}

func (suite *CreditHandlerTestSuite) TestRefund_InvalidTransactionID() {
	w := suite.do(http.MethodPost, "/api/v1/credits/refund", map[string]any{
		"action":        "slide_generate",
		"transactionID": "not-a-uuid",
	})
	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *CreditHandlerTestSuite) TestRefund_TransactionIDRequired() {
	w := suite.do(http.MethodPost, "/api/v1/credits/refund", map[string]any{
		"action": "slide_generate",
	})
	suite.Equal(http.StatusBadRequest, w.Code)
	suite.mockCreditService.AssertNotCalled(suite.T(), "Refund", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (suite *CreditHandlerTestSuite) TestRefund_ErrorMapping() {
	tests := []struct {
		name     string
		outcome  *domain.AddOutcome
		err      error
		wantCode int
	}{
		{"unknown debit", nil, apperrors.ErrNotFound, http.StatusNotFound},
		{"not a refundable charge", nil, fmt.Errorf("%w: not a charge", apperrors.ErrValidation), http.StatusBadRequest},
		{"already refunded", &domain.AddOutcome{Success: true, Duplicate: true, NewBalance: 3}, nil, http.StatusConflict},
		{"store down", nil, apperrors.ErrStoreUnavailable, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		suite.Run(tt.name, func() {
			debitID := uuid.NewString()
			suite.mockCreditService.On("Refund", mock.Anything, suite.userID, domain.ActionChatMessage, debitID, mock.Anything).
				Return(tt.outcome, tt.err).Once()

			w := suite.do(http.MethodPost, "/api/v1/credits/refund", dto.RefundCreditsRequest{
				Action:        "chat_message",
				TransactionID: debitID,
			})
			suite.Equal(tt.wantCode, w.Code)
		})
	}
}

func (suite *CreditHandlerTestSuite) TestCheckBalance() {
	suite.mockCreditService.On("CheckBalance", mock.Anything, suite.userID, domain.ActionImageGenerate).
		Return(&domain.BalanceCheck{HasEnough: true, CurrentBalance: 12, Required: 2}, nil).Once()

	w := suite.do(http.MethodGet, "/api/v1/credits/check?action=image_generate", nil)

	suite.Equal(http.StatusOK, w.Code)
	var resp dto.BalanceCheckResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.Equal(dto.BalanceCheckResponse{HasEnough: true, CurrentBalance: 12, Required: 2}, resp)
}

func (suite *CreditHandlerTestSuite) TestCheckBalance_MissingAction() {
	w := suite.do(http.MethodGet, "/api/v1/credits/check", nil)
	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *CreditHandlerTestSuite) TestGetStats() {
	suite.mockCreditService.On("GetStats", mock.Anything, suite.userID).
		Return(&domain.CreditStats{Balance: 480, TotalUsed: 520, SubscriptionStatus: domain.StatusLite}, nil).Once()

	w := suite.do(http.MethodGet, "/api/v1/credits/stats", nil)

	suite.Equal(http.StatusOK, w.Code)
	var resp dto.CreditStatsResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.Equal(int64(480), resp.Balance)
	suite.Equal(int64(520), resp.TotalUsed)
	suite.Equal("lite", resp.SubscriptionStatus)
}

func (suite *CreditHandlerTestSuite) TestGetStats_NotFound() {
	suite.mockCreditService.On("GetStats", mock.Anything, suite.userID).
		Return(nil, fmt.Errorf("account %s: %w", suite.userID, apperrors.ErrNotFound)).Once()

	w := suite.do(http.MethodGet, "/api/v1/credits/stats", nil)

	suite.Equal(http.StatusNotFound, w.Code)
}

func (suite *CreditHandlerTestSuite) TestListTransactions() {
	next := "opaque-token"
	page := &domain.TransactionPage{
		Transactions: []domain.Transaction{
			{TransactionID: uuid.NewString(), ActionType: domain.ActionChatMessage, CreditsUsed: 2, CreditsBefore: 12, CreditsAfter: 10, CreatedAt: time.Now()},
		},
		NextToken: &next,
	}
	suite.mockCreditService.On("ListTransactions", mock.Anything, suite.userID, 1, "").Return(page, nil).Once()

	w := suite.do(http.MethodGet, "/api/v1/credits/transactions?limit=1", nil)

	suite.Equal(http.StatusOK, w.Code)
	var resp dto.ListTransactionsResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.Require().Len(resp.Transactions, 1)
	suite.Equal("chat_message", resp.Transactions[0].ActionType)
	suite.Require().NotNil(resp.NextToken)
	suite.Equal(next, *resp.NextToken)
}

func (suite *CreditHandlerTestSuite) TestListTransactions_LimitOutOfRange() {
	w := suite.do(http.MethodGet, "/api/v1/credits/transactions?limit=500", nil)
	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *CreditHandlerTestSuite) TestListTransactions_BadToken() {
	suite.mockCreditService.On("ListTransactions", mock.Anything, suite.userID, 0, "garbage").
		Return(nil, fmt.Errorf("%w: invalid page token", apperrors.ErrValidation)).Once()

	w := suite.do(http.MethodGet, "/api/v1/credits/transactions?nextToken=garbage", nil)

	suite.Equal(http.StatusBadRequest, w.Code)
}

func TestCreditHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(CreditHandlerTestSuite))
}
