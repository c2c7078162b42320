// Renderer bridge adapter
//
// The bridge is a JSON-over-HTTP proxy in front of a renderer fleet and its catalog. One
// [BridgeService] implements every collaborator the client needs.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/renderkit/internal/catalog"
	"github.com/desertthunder/renderkit/internal/models"
	"github.com/desertthunder/renderkit/internal/queue"
	"github.com/desertthunder/renderkit/internal/renderer"
	"github.com/desertthunder/renderkit/internal/shared"
)

const cancelTimeout = 2 * time.Second

var (
	_ catalog.Source     = (*BridgeService)(nil)
	_ queue.Source       = (*BridgeService)(nil)
	_ renderer.Transport = (*BridgeService)(nil)
	_ NodeLookup         = (*BridgeService)(nil)
	_ RendererLister     = (*BridgeService)(nil)
)

// SearchRequest is the body of POST /catalog/{node}/search.
type SearchRequest struct {
	Keyword       string                 `json:"keyword"`
	Criterion     models.SearchCriterion `json:"criterion"`
	Start         int                    `json:"start"`
	End           int                    `json:"end"`
	IsFirstSearch bool                   `json:"isFirstSearch"`
}

// BridgeError is the error body returned by the bridge.
type BridgeError struct {
	Detail string `json:"detail"`
}

// BridgeService talks to the renderer bridge.
type BridgeService struct {
	api    *APIService
	logger *log.Logger
}

func NewBridgeService(api *APIService, logger *log.Logger) *BridgeService {
	return &BridgeService{api: api, logger: shared.WithLogger(logger, "component", "bridge")}
}

// Name returns the service name.
func (b *BridgeService) Name() string {
	return "Bridge"
}

// Node calls GET /catalog/{node}.
func (b *BridgeService) Node(ctx context.Context, id string) (models.CatalogNode, error) {
	var node models.CatalogNode
	err := b.doRequest(ctx, http.MethodGet, "/catalog/"+url.PathEscape(id), nil, &node, shared.ErrNodeNotFound)
	if err != nil {
		return models.CatalogNode{}, err
	}
	if err := node.Validate(); err != nil {
		return models.CatalogNode{}, fmt.Errorf("%w: %w", shared.ErrMalformedResponse, err)
	}
	return node, nil
}

// FetchRange calls GET /catalog/{node}/items?start&end.
func (b *BridgeService) FetchRange(ctx context.Context, nodeID string, r models.Range) (models.ItemPage, error) {
	q := url.Values{}
	q.Set("start", fmt.Sprint(r.Lower))
	q.Set("end", fmt.Sprint(r.Upper))

	var page models.ItemPage
	path := "/catalog/" + url.PathEscape(nodeID) + "/items?" + q.Encode()
	if err := b.doRequest(ctx, http.MethodGet, path, nil, &page, shared.ErrNodeNotFound); err != nil {
		return models.ItemPage{}, err
	}
	return page, nil
}

// Search calls POST /catalog/{node}/search.
func (b *BridgeService) Search(ctx context.Context, nodeID, keyword string, criterion models.SearchCriterion, r models.Range, isFirstSearch bool) (models.ItemPage, error) {
	body := SearchRequest{
		Keyword:       keyword,
		Criterion:     criterion,
		Start:         r.Lower,
		End:           r.Upper,
		IsFirstSearch: isFirstSearch,
	}

	var page models.ItemPage
	path := "/catalog/" + url.PathEscape(nodeID) + "/search"
	if err := b.doRequest(ctx, http.MethodPost, path, body, &page, shared.ErrSearchFailed); err != nil {
		return models.ItemPage{}, err
	}
	return page, nil
}

// CancelSearch fires POST /catalog/{node}/search/cancel without waiting for the answer.
func (b *BridgeService) CancelSearch(nodeID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), cancelTimeout)
		defer cancel()
		path := "/catalog/" + url.PathEscape(nodeID) + "/search/cancel"
		if err := b.doRequest(ctx, http.MethodPost, path, struct{}{}, nil, shared.ErrSearchFailed); err != nil {
			b.logger.Debug("search cancel failed", "node", nodeID, "error", err)
		}
	}()
}

// Renderers calls GET /renderers.
func (b *BridgeService) Renderers(ctx context.Context) ([]models.RendererState, error) {
	var states []models.RendererState
	if err := b.doRequest(ctx, http.MethodGet, "/renderers", nil, &states, shared.ErrSourceUnavailable); err != nil {
		return nil, err
	}
	for _, s := range states {
		if s.ID == "" {
			return nil, fmt.Errorf("%w: renderer without ID", shared.ErrMalformedResponse)
		}
	}
	return states, nil
}

// FetchState calls GET /renderers/{id}/state.
func (b *BridgeService) FetchState(ctx context.Context, rendererID string) (models.RendererState, error) {
	var s models.RendererState
	if err := b.doRequest(ctx, http.MethodGet, rendererPath(rendererID, "state"), nil, &s, shared.ErrRendererNotFound); err != nil {
		return models.RendererState{}, err
	}
	if s.ID == "" {
		s.ID = rendererID
	}
	return s, nil
}

// SendCommand calls POST /renderers/{id}/commands.
func (b *BridgeService) SendCommand(ctx context.Context, rendererID string, cmd models.Command) error {
	return b.doRequest(ctx, http.MethodPost, rendererPath(rendererID, "commands"), cmd, nil, shared.ErrCommandRejected)
}

// FetchQueue calls GET /renderers/{id}/queue.
func (b *BridgeService) FetchQueue(ctx context.Context, rendererID string) ([]models.QueueEntry, error) {
	var entries []models.QueueEntry
	if err := b.doRequest(ctx, http.MethodGet, rendererPath(rendererID, "queue"), nil, &entries, shared.ErrRendererNotFound); err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.ID == "" {
			return nil, fmt.Errorf("%w: queue entry without ID", shared.ErrMalformedResponse)
		}
	}
	if entries == nil {
		entries = []models.QueueEntry{}
	}
	return entries, nil
}

// MutateQueue calls POST /renderers/{id}/queue.
func (b *BridgeService) MutateQueue(ctx context.Context, rendererID string, cmd models.MutationCommand) error {
	return b.doRequest(ctx, http.MethodPost, rendererPath(rendererID, "queue"), cmd, nil, shared.ErrQueueMutationFailed)
}

// doRequest sends body as JSON and decodes the answer into result.
//
// Transport failures and 5xx answers are [shared.ErrSourceUnavailable], undecodable bodies are
// [shared.ErrMalformedResponse], and 4xx answers wrap rejected.
func (b *BridgeService) doRequest(ctx context.Context, method, path string, body, result any, rejected error) error {
	var data []byte
	if body != nil {
		var err error
		if data, err = json.Marshal(body); err != nil {
			return fmt.Errorf("%w: encoding request: %w", shared.ErrInvalidInput, err)
		}
	}

	resp, err := b.api.Do(ctx, method, path, data)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("%w: %s %s: %w", shared.ErrSourceUnavailable, method, path, err)
	}

	if !resp.OK() {
		detail := fmt.Sprintf("status %d", resp.StatusCode)
		var errResp BridgeError
		if json.Unmarshal(resp.Body, &errResp) == nil && errResp.Detail != "" {
			detail = fmt.Sprintf("status %d: %s", resp.StatusCode, errResp.Detail)
		}
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%w: %s %s: %s", shared.ErrSourceUnavailable, method, path, detail)
		}
		return fmt.Errorf("%w: %s %s: %s", rejected, method, path, detail)
	}

	if result == nil {
		return nil
	}
	if !resp.IsJSON {
		return fmt.Errorf("%w: %s %s: body is not JSON", shared.ErrMalformedResponse, method, path)
	}
	if err := json.Unmarshal(resp.Body, result); err != nil {
		return fmt.Errorf("%w: %s %s: %w", shared.ErrMalformedResponse, method, path, err)
	}
	return nil
}

func rendererPath(id, resource string) string {
	return "/renderers/" + url.PathEscape(id) + "/" + resource
}
