package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"discord-fake-service/internal/models"
	"discord-fake-service/internal/repository"
	"discord-fake-service/internal/signing"
)

// DeliveryResult is the outcome of a signed interaction POST: the status
// code the target returned and its body, parsed as JSON when possible.
type DeliveryResult struct {
	StatusCode int         `json:"statusCode"`
	Body       interface{} `json:"body"`
}

// InteractionService handles interaction responses, followups and outbound
// signed interaction delivery.
type InteractionService struct {
	tenantRepo *repository.TenantRepository
	stateRepo  *repository.StateRepository
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewInteractionService creates a new interaction service
func NewInteractionService(tenantRepo *repository.TenantRepository, stateRepo *repository.StateRepository, logger *logrus.Logger) *InteractionService {
	return &InteractionService{
		tenantRepo: tenantRepo,
		stateRepo:  stateRepo,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// EditResponse upserts the single response row for an interaction token and
// returns it. Each upsert assigns a fresh "resp-N" id.
func (s *InteractionService) EditResponse(ctx context.Context, tenantID uuid.UUID, token string, payload []byte) (*models.InteractionResponse, error) {
	id, err := s.tenantRepo.GenerateID(ctx, tenantID, "resp")
	if err != nil {
		return nil, err
	}
	response := &models.InteractionResponse{
		TenantID:         tenantID,
		InteractionToken: token,
		ResponseID:       id,
		Payload:          datatypes.JSON(payload),
		RespondedAt:      time.Now().UTC(),
	}
	if err := s.stateRepo.UpsertInteractionResponse(ctx, response); err != nil {
		return nil, err
	}
	return response, nil
}

// SendFollowup appends a followup message with a fresh "followup-N" id.
func (s *InteractionService) SendFollowup(ctx context.Context, tenantID uuid.UUID, token string, payload []byte) (*models.Followup, error) {
	id, err := s.tenantRepo.GenerateID(ctx, tenantID, "followup")
	if err != nil {
		return nil, err
	}
	followup := &models.Followup{
		TenantID:         tenantID,
		ID:               id,
		InteractionToken: token,
		Payload:          datatypes.JSON(payload),
		CreatedAt:        time.Now().UTC(),
	}
	if err := s.stateRepo.CreateFollowup(ctx, followup); err != nil {
		return nil, err
	}
	return followup, nil
}

// GetResponse returns the stored response for a token, nil when absent.
func (s *InteractionService) GetResponse(ctx context.Context, tenantID uuid.UUID, token string) (*models.InteractionResponse, error) {
	return s.stateRepo.GetInteractionResponse(ctx, tenantID, token)
}

// ListFollowups returns the followups recorded for a token.
func (s *InteractionService) ListFollowups(ctx context.Context, tenantID uuid.UUID, token string) ([]models.Followup, error) {
	return s.stateRepo.ListFollowups(ctx, tenantID, token)
}

// DeliverSigned signs an interaction payload with the tenant's private key
// and POSTs it to webhookURL. The exact bytes that are signed are the bytes
// sent; the payload is serialized once.
func (s *InteractionService) DeliverSigned(ctx context.Context, tenant *models.Tenant, webhookURL string, interaction json.RawMessage) (*DeliveryResult, error) {
	body, err := json.Marshal(interaction)
	if err != nil {
		return nil, NewValidationError("interaction is not valid JSON")
	}

	timestamp := fmt.Sprintf("%d", time.Now().Unix())
	signature, err := signing.Sign(tenant.PrivateKey, timestamp, string(body))
	if err != nil {
		return nil, fmt.Errorf("failed to sign interaction: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return nil, NewWebhookError(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Signature-Ed25519", signature)
	req.Header.Set("X-Signature-Timestamp", timestamp)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, NewWebhookError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewWebhookError(err)
	}

	result := &DeliveryResult{StatusCode: resp.StatusCode}
	var parsed interface{}
	if err := json.Unmarshal(respBody, &parsed); err == nil {
		result.Body = parsed
	} else {
		result.Body = string(respBody)
	}

	s.logger.WithFields(logrus.Fields{
		"tenant_id": tenant.ID,
		"status":    resp.StatusCode,
	}).Debug("Signed interaction delivered")
	return result, nil
}
