package blocks

import (
	"context"
	"fmt"
	"strings"

	"github.com/enrichflow/enrichflow/block"
	"github.com/enrichflow/enrichflow/types"
)

// Email classification kinds.
const (
	EmailCorporate  = "corporate"
	EmailFree       = "free"
	EmailDisposable = "disposable"
	EmailInvalid    = "invalid"
)

var freeMailDomains = map[string]bool{
	"gmail.com":      true,
	"googlemail.com": true,
	"yahoo.com":      true,
	"outlook.com":    true,
	"hotmail.com":    true,
	"live.com":       true,
	"icloud.com":     true,
	"aol.com":        true,
	"proton.me":      true,
	"protonmail.com": true,
	"gmx.com":        true,
	"mail.com":       true,
}

var disposableDomains = map[string]bool{
	"mailinator.com":    true,
	"guerrillamail.com": true,
	"10minutemail.com":  true,
	"tempmail.com":      true,
	"throwaway.email":   true,
	"yopmail.com":       true,
	"sharklasers.com":   true,
}

var roleLocalParts = map[string]bool{
	"admin":      true,
	"info":       true,
	"support":    true,
	"sales":      true,
	"contact":    true,
	"hello":      true,
	"team":       true,
	"noreply":    true,
	"no-reply":   true,
	"postmaster": true,
	"billing":    true,
}

// EmailClassify tags email addresses by deliverability class. It accepts a
// string, a []string / []any of strings, or a map carrying an "email" field,
// and emits one classification record per address:
//
//	{email, domain, local_part, kind, role}
//
// Pure and deterministic; it never calls out to a verification provider.
type EmailClassify struct{}

func (b *EmailClassify) Type() string { return "email_classify" }

func (b *EmailClassify) Execute(ctx context.Context, config block.Config, input any, ec *block.ExecutionContext) (any, error) {
	emails, err := extractEmails(input)
	if err != nil {
		return nil, err
	}

	results := make([]map[string]any, 0, len(emails))
	for _, email := range emails {
		results = append(results, classifyEmail(email))
	}

	ec.Log(fmt.Sprintf("classified %d email(s)", len(results)))
	if len(results) == 1 {
		return results[0], nil
	}
	return results, nil
}

func extractEmails(input any) ([]string, error) {
	switch v := input.(type) {
	case string:
		return []string{v}, nil
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, types.NewError(types.ErrValidation,
					fmt.Sprintf("email_classify: list item is %T, want string", item))
			}
			out = append(out, s)
		}
		return out, nil
	case map[string]any:
		if s, ok := v["email"].(string); ok {
			return []string{s}, nil
		}
		return nil, types.NewError(types.ErrValidation, "email_classify: map input has no \"email\" field")
	default:
		return nil, types.NewError(types.ErrValidation,
			fmt.Sprintf("email_classify: unsupported input type %T", input))
	}
}

func classifyEmail(raw string) map[string]any {
	email := strings.ToLower(strings.TrimSpace(raw))

	result := map[string]any{
		"email": email,
		"kind":  EmailInvalid,
		"role":  false,
	}

	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return result
	}
	local, domain := email[:at], email[at+1:]
	if strings.ContainsAny(local, " \t") || !strings.Contains(domain, ".") ||
		strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return result
	}

	result["domain"] = domain
	result["local_part"] = local
	result["role"] = roleLocalParts[strings.SplitN(local, "+", 2)[0]]

	switch {
	case disposableDomains[domain]:
		result["kind"] = EmailDisposable
	case freeMailDomains[domain]:
		result["kind"] = EmailFree
	default:
		result["kind"] = EmailCorporate
	}
	return result
}
