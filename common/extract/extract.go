package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Glyph8/navermapCrawling/common/browser"
	"github.com/Glyph8/navermapCrawling/common/locator"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// DefaultSentinel is stored for fields that could not be resolved
const DefaultSentinel = "missing"

// DefaultExpandTimeout bounds the wait for the expand control
const DefaultExpandTimeout = time.Second

var (
	ErrEmptySchema      = errors.New("schema has no rules")
	ErrDuplicateField   = errors.New("duplicate field")
	ErrUnknownAddress   = errors.New("address field is not a rule")
	ErrUnknownKey       = errors.New("key field is not a rule")
	ErrRuleWithoutChain = errors.New("rule has no locator chain")
)

// Rule extracts one field
type Rule struct {
	Field string
	Chain locator.Chain

	// Within is tried when Chain is unresolved: the first matched container
	// whose text contains Label, with the label stripped
	Within locator.Chain
	Label  string

	// Parts, when set, replaces Chain: every part must resolve and the
	// results are joined with Separator
	Parts     []locator.Chain
	Separator string

	Normalize Normalizer
	Sentinel  string

	// Gated fields are hidden until the schema's expand control is activated
	Gated bool
}

// Schema is an ordered rule set producing one record per detail view
type Schema struct {
	Name         string
	Rules        []Rule
	AddressField string
	// KeyFields identify a place across searches; empty means every field
	KeyFields     []string
	Expand        locator.Chain
	ExpandTimeout time.Duration
	Sentinel      string
}

// Fields returns the field names in rule order
func (s Schema) Fields() []string {
	return lo.Map(s.Rules, func(r Rule, _ int) string {
		return r.Field
	})
}

// Validate checks the schema is usable
func (s Schema) Validate() error {
	if len(s.Rules) == 0 {
		return ErrEmptySchema
	}
	if dup := lo.FindDuplicates(s.Fields()); len(dup) > 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateField, strings.Join(dup, ", "))
	}
	for _, r := range s.Rules {
		if len(r.Chain) == 0 && len(r.Parts) == 0 && len(r.Within) == 0 {
			return fmt.Errorf("%w: %s", ErrRuleWithoutChain, r.Field)
		}
	}
	if s.AddressField != "" && !lo.Contains(s.Fields(), s.AddressField) {
		return fmt.Errorf("%w: %s", ErrUnknownAddress, s.AddressField)
	}
	if unknown, _ := lo.Difference(s.KeyFields, s.Fields()); len(unknown) > 0 {
		return fmt.Errorf("%w: %s", ErrUnknownKey, strings.Join(unknown, ", "))
	}
	return nil
}

// SentinelFor returns the value stored when r cannot be resolved
func (s Schema) SentinelFor(r Rule) string {
	if r.Sentinel != "" {
		return r.Sentinel
	}
	if s.Sentinel != "" {
		return s.Sentinel
	}
	return DefaultSentinel
}

// Extractor maps a detail view into a Record
type Extractor struct {
	session  browser.Session
	resolver *locator.Resolver
}

func NewExtractor(session browser.Session, resolver *locator.Resolver) *Extractor {
	return &Extractor{session: session, resolver: resolver}
}

// Extract evaluates every rule against doc. An unresolved field holds its
// sentinel; only stale handles, stale contexts and cancellation are errors.
func (x *Extractor) Extract(ctx context.Context, doc browser.Document, schema Schema) (Record, error) {
	logger := zerolog.Ctx(ctx)
	fields := schema.Fields()
	values := make(map[string]string, len(fields))
	var missing []string
	expanded := false

	for _, rule := range schema.Rules {
		if rule.Gated && !expanded {
			expanded = true
			if err := x.expand(ctx, doc, schema); err != nil {
				return Record{}, err
			}
		}

		value, ok, err := x.field(ctx, doc, rule)
		if err != nil {
			return Record{}, fmt.Errorf("field %s: %w", rule.Field, err)
		}
		if !ok {
			logger.Debug().Str("field", rule.Field).Msg("Field unresolved, using sentinel")
			values[rule.Field] = schema.SentinelFor(rule)
			missing = append(missing, rule.Field)
			continue
		}
		values[rule.Field] = value
	}

	return NewRecord(schema.Name, fields, values, missing).WithKey(schema.KeyFields...), nil
}

func (x *Extractor) field(ctx context.Context, doc browser.Document, rule Rule) (string, bool, error) {
	normalize := rule.Normalize
	if normalize == nil {
		normalize = DefaultNormalize
	}

	if len(rule.Parts) > 0 {
		parts := make([]string, 0, len(rule.Parts))
		for _, chain := range rule.Parts {
			text, ok, err := x.text(ctx, doc, chain, "")
			if err != nil || !ok {
				return "", false, err
			}
			parts = append(parts, normalize(text))
		}
		return strings.Join(parts, rule.Separator), true, nil
	}

	if len(rule.Chain) > 0 {
		text, ok, err := x.text(ctx, doc, rule.Chain, "")
		if err != nil {
			return "", false, err
		}
		if ok {
			if value := normalize(text); value != "" {
				return value, true, nil
			}
		}
	}

	if len(rule.Within) > 0 {
		text, ok, err := x.text(ctx, doc, rule.Within, rule.Label)
		if err != nil || !ok {
			return "", false, err
		}
		value := normalize(StripLabel(rule.Label)(text))
		return value, value != "", nil
	}

	return "", false, nil
}

// text resolves chain and reads the first match, or the first match containing label
func (x *Extractor) text(ctx context.Context, doc browser.Document, chain locator.Chain, label string) (string, bool, error) {
	found, err := x.resolver.Resolve(ctx, doc, chain)
	if err != nil {
		return "", false, err
	}
	match, ok := found.Get()
	if !ok {
		return "", false, nil
	}

	for _, el := range match.Elements {
		text, err := el.Text(ctx)
		if err != nil {
			if browser.IsStale(err) || browser.IsCanceled(err) {
				return "", false, err
			}
			zerolog.Ctx(ctx).Debug().Err(err).Str("strategy", match.Strategy.String()).Msg("Failed to read text")
			continue
		}
		if label == "" || strings.Contains(text, label) {
			return text, true, nil
		}
	}
	return "", false, nil
}

// expand activates the first visible expand control once. Any failure other
// than cancellation is logged and ignored.
func (x *Extractor) expand(ctx context.Context, doc browser.Document, schema Schema) error {
	if len(schema.Expand) == 0 {
		return nil
	}
	logger := zerolog.Ctx(ctx)
	timeout := schema.ExpandTimeout
	if timeout <= 0 {
		timeout = DefaultExpandTimeout
	}

	found, err := x.resolver.ResolveWithin(ctx, doc, schema.Expand, timeout)
	if err != nil {
		if browser.IsCanceled(err) {
			return err
		}
		logger.Debug().Err(err).Msg("Expand control lookup failed")
		return nil
	}
	match, ok := found.Get()
	if !ok {
		return nil
	}

	control, ok := lo.Find(match.Elements, func(el browser.Element) bool {
		visible, err := el.Visible(ctx)
		return err == nil && visible
	})
	if !ok {
		return nil
	}

	if err := doc.Click(ctx, control); err != nil {
		if browser.IsCanceled(err) {
			return err
		}
		logger.Debug().Err(err).Msg("Expand click failed")
		return nil
	}

	// wait for the control to disappear, which is how the section signals it has opened
	_, err = x.session.WaitUntil(ctx, timeout, func(ctx context.Context) (bool, error) {
		visible, err := control.Visible(ctx)
		if err != nil {
			return true, nil
		}
		return !visible, nil
	})
	if browser.IsCanceled(err) {
		return err
	}
	return nil
}
