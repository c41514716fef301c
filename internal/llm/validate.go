package llm

import "context"

// ValidateKey builds a vendor client for the given model and issues its
// 1-token probe, per §4.1 step 2. Returned errors are already classified
// apierr.Kind values (AuthFailed, QuotaExceeded, ModelForbidden,
// ModelNotFound, UpstreamUnavailable).
func ValidateKey(ctx context.Context, apiKey, model string) error {
	client, err := New(apiKey, model, NewCostService())
	if err != nil {
		return err
	}
	return client.Validate(ctx, model)
}
