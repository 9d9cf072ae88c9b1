package authz

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/aussiebroadwan/iha/internal/iha/domain"
	"github.com/aussiebroadwan/iha/internal/iha/store"
	"github.com/aussiebroadwan/iha/pkg/slogx"
)

// checkConsent passes auto-approved clients and requests whose scopes the
// user approved before. A request carrying user_oauth_approval=true is the
// approval itself and is recorded; false denies the request.
func (b *Builder) checkConsent(ctx context.Context, req Request) error {
	if req.Client.AutoApprove {
		return nil
	}

	if req.Param.Has(domain.ParamUserApproval) {
		if !req.Param.Bool(domain.ParamUserApproval) {
			return domain.New(domain.KindAccessDenied, "the user denied the authorization request")
		}
		return b.approve(ctx, req)
	}

	if b.Approvals == nil {
		return consentRequired(req.Scopes)
	}
	approval, err := b.Approvals.GetApproval(ctx, req.User.ID, req.Client.ClientID)
	if errors.Is(err, store.ErrNotFound) {
		return consentRequired(req.Scopes)
	}
	if err != nil {
		return domain.Wrap(domain.KindInternal, err, "load approval")
	}
	if now := b.now(); !approval.Covers(req.Scopes, now) {
		missing := req.Scopes
		if approval.Covers(nil, now) {
			missing = approval.Missing(req.Scopes)
		}
		return consentRequired(missing)
	}
	return nil
}

// approve records the request's scopes, merged with any live earlier
// approval for the same client.
func (b *Builder) approve(ctx context.Context, req Request) error {
	if b.Approvals == nil {
		return nil
	}

	now := b.now()
	scopes := slices.Clone(req.Scopes)
	prev, err := b.Approvals.GetApproval(ctx, req.User.ID, req.Client.ClientID)
	switch {
	case err == nil && prev.Covers(nil, now):
		for _, s := range prev.Scopes {
			if !slices.Contains(scopes, s) {
				scopes = append(scopes, s)
			}
		}
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return domain.Wrap(domain.KindInternal, err, "load approval")
	}

	approval := domain.Approval{
		UserID:    req.User.ID,
		ClientID:  req.Client.ClientID,
		Scopes:    scopes,
		UpdatedAt: now,
	}
	switch ttl := b.ApprovalTTL; {
	case ttl == 0:
		approval.ExpiresAt = now.Add(domain.DefaultApprovalTTL)
	case ttl > 0:
		approval.ExpiresAt = now.Add(ttl)
	}

	if err := b.Approvals.SaveApproval(ctx, approval); err != nil {
		return domain.Wrap(domain.KindInternal, err, "save approval")
	}

	slogx.FromContext(ctx).Info("authorization approved",
		"client_id", req.Client.ClientID,
		"user_id", req.User.ID,
		"scope", strings.Join(scopes, " "),
	)
	return nil
}

func consentRequired(scopes []string) error {
	return domain.New(domain.KindConsentRequired, "the user has not approved the requested scopes").
		WithDetail("scope", strings.Join(scopes, " "))
}
