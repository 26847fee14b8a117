package tenancy

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-tenancy/internal/auth"
)

// HintSource names where a candidate company id came from.
type HintSource string

// Sources in precedence order.
const (
	SourcePrimary HintSource = "primary"
	SourcePath    HintSource = "path"
	SourceBody    HintSource = "body"
	SourceQuery   HintSource = "query"
	SourceHeader  HintSource = "header"
)

const (
	// PathParam is the chi URL parameter carrying a company id.
	PathParam = "companyId"
	// HeaderName carries a company id on any request.
	HeaderName = "X-Company-ID"

	maxHintBody = 1 << 20
)

// Hint is one candidate company id.
type Hint struct {
	Source HintSource
	Value  string
}

// First returns the first non-empty hint.
func First(hints []Hint) (Hint, bool) {
	for _, h := range hints {
		if strings.TrimSpace(h.Value) != "" {
			return Hint{Source: h.Source, Value: strings.TrimSpace(h.Value)}, true
		}
	}
	return Hint{}, false
}

// HarvestHints collects candidate company ids for r in precedence order:
// the principal's primary company, the path, the JSON body, the query string
// and finally the X-Company-ID header. A consumed body is restored.
func HarvestHints(r *http.Request, p *auth.Principal) []Hint {
	hints := make([]Hint, 0, 5)
	if p != nil && p.PrimaryCompanyID.Valid {
		hints = append(hints, Hint{Source: SourcePrimary, Value: p.PrimaryCompanyID.UUID.String()})
	}
	hints = append(hints,
		Hint{Source: SourcePath, Value: chi.URLParam(r, PathParam)},
		Hint{Source: SourceBody, Value: bodyHint(r)},
		Hint{Source: SourceQuery, Value: queryHint(r)},
		Hint{Source: SourceHeader, Value: r.Header.Get(HeaderName)},
	)
	return hints
}

func queryHint(r *http.Request) string {
	q := r.URL.Query()
	if v := q.Get("company_id"); v != "" {
		return v
	}
	return q.Get("companyId")
}

type companyBody struct {
	Snake string `json:"company_id"`
	Camel string `json:"companyId"`
}

func bodyHint(r *http.Request) string {
	if r.Body == nil || r.Body == http.NoBody {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return ""
	}
	orig := r.Body
	payload, err := io.ReadAll(io.LimitReader(orig, maxHintBody+1))
	r.Body = readCloser{Reader: io.MultiReader(bytes.NewReader(payload), orig), Closer: orig}
	if err != nil || len(payload) > maxHintBody {
		return ""
	}
	var body companyBody
	if err := json.Unmarshal(payload, &body); err != nil {
		return ""
	}
	if body.Snake != "" {
		return body.Snake
	}
	return body.Camel
}

type readCloser struct {
	io.Reader
	io.Closer
}
