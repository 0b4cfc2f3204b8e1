package navermap

import (
	"fmt"
	"strings"
	"time"

	"github.com/Glyph8/navermapCrawling/common/browser"
	"github.com/Glyph8/navermapCrawling/common/extract"
	"github.com/Glyph8/navermapCrawling/common/locator"
	"github.com/samber/lo"
)

var (
	expandControl = locator.NewChain(browser.XPath("//span[contains(text(), '더보기')]"))

	// keyword containers holding a label and its values
	keywordBox = locator.NewChain(browser.CSS("div.sJgQj"))

	// the rank block reporting the most popular age group
	topRank = "//span[contains(text(), '인기순위')]/parent::div[.//span[text()='1'] and .//span[text()='위']]"
)

// labelled reads the value following label, falling back to the keyword container mentioning it
func labelled(field string) extract.Rule {
	return extract.Rule{
		Field: field,
		Chain: locator.NewChain(
			browser.XPath(fmt.Sprintf("//div[contains(text(), '%s')]/following-sibling::div", field)),
			browser.XPath(fmt.Sprintf("//span[contains(text(), '%s')]/following-sibling::span", field)),
			browser.XPath(fmt.Sprintf("//span[contains(text(), '%s')]/parent::*/following-sibling::*", field)),
		),
		Within: keywordBox,
		Label:  field,
		Gated:  true,
	}
}

func stripPercent(s string) string {
	return strings.ReplaceAll(s, "%", "")
}

func baseRules() []extract.Rule {
	return []extract.Rule{
		{Field: FieldName, Chain: locator.NewChain(browser.CSS("span.GHAhO"))},
		{Field: FieldCategory, Chain: locator.NewChain(browser.CSS("span.lnJFt"))},
		{Field: FieldDescription, Chain: locator.NewChain(browser.CSS("div.XtBbS"))},
		{Field: FieldAddress, Chain: locator.NewChain(browser.CSS("span.LDgIH"))},
	}
}

func genderRule() extract.Rule {
	return extract.Rule{
		Field:     FieldGender,
		Chain:     locator.NewChain(browser.XPath("(//tspan[@class='datalab-unit' and text()='%'])[1]/parent::*")),
		Normalize: extract.Compose(stripPercent, extract.DefaultNormalize),
		Gated:     true,
	}
}

func newSchema(name string, rules []extract.Rule) extract.Schema {
	return extract.Schema{
		Name:          name,
		Rules:         rules,
		AddressField:  FieldAddress,
		KeyFields:     []string{FieldName, FieldAddress},
		Expand:        expandControl,
		ExpandTimeout: 2 * time.Second,
		Sentinel:      Sentinel,
	}
}

// PlaceSchema extracts the place card with keyword sections and the top age group
func PlaceSchema() extract.Schema {
	rules := append(baseRules(),
		labelled(FieldAtmosphere),
		labelled(FieldTopics),
		labelled(FieldPurpose),
		extract.Rule{
			Field: FieldAge,
			Parts: []locator.Chain{
				locator.NewChain(browser.XPath(topRank + "//span[contains(@class, 'place_blind')]")),
				locator.NewChain(browser.XPath(topRank + "/following-sibling::div")),
			},
			Separator: "_",
			Gated:     true,
		},
		genderRule(),
	)
	return newSchema(SchemaPlace, rules)
}

// AgeField names the datalab share of one age group
func AgeField(group string) string {
	return FieldAge + " " + group
}

// DatalabSchema extracts the place card with the share of every age group
func DatalabSchema() extract.Schema {
	rules := baseRules()
	rules = append(rules, lo.Map(AgeGroups, func(group string, _ int) extract.Rule {
		return extract.Rule{
			Field: AgeField(group),
			Chain: locator.NewChain(
				browser.XPath(fmt.Sprintf("//span[normalize-space(text())='%s']/following-sibling::span[contains(@class, 'place_blind')]", group)),
				browser.XPath(fmt.Sprintf("//div[normalize-space(text())='%s']/following-sibling::div", group)),
			),
			Gated: true,
		}
	})...)
	rules = append(rules, genderRule())
	return newSchema(SchemaDatalab, rules)
}

// GetSchema returns the named schema; empty selects the place schema
func GetSchema(name string) (extract.Schema, error) {
	switch name {
	case "", SchemaPlace:
		return PlaceSchema(), nil
	case SchemaDatalab:
		return DatalabSchema(), nil
	default:
		return extract.Schema{}, unknownSchema(name)
	}
}
