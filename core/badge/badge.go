// Package badge renders shields-style SVG badges for quality metrics.
// Rendering is pure: the same inputs always produce the same bytes.
package badge

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/huangsam/codegrade/schema"
)

// Badge styles.
const (
	StyleFlat    = "flat" // default, square corners
	StylePlastic = "plastic"
)

// Colors of the score ramp, brightest green to red.
const (
	ColorBrightGreen = "#4c1"
	ColorGreen       = "#97ca00"
	ColorYellowGreen = "#a4a61d"
	ColorYellow      = "#dfb317"
	ColorOrange      = "#fe7d37"
	ColorRed         = "#e05d44"
	ColorGray        = "#9f9f9f"
)

// UnknownMessage is shown when no value is available.
const UnknownMessage = "unknown"

const (
	minLabelWidth   = 50
	minMessageWidth = 30
	charWidth       = 6
	textPadding     = 10
)

var stylePattern = regexp.MustCompile(`^[a-z-]{1,20}$`)

// NormalizeStyle returns a safe style name, falling back to flat.
// The style ends up in cache keys, so anything outside [a-z-] is rejected.
func NormalizeStyle(style string) string {
	style = strings.ToLower(strings.TrimSpace(style))
	if !stylePattern.MatchString(style) {
		return StyleFlat
	}
	return style
}

// Label returns the fixed label text of a variant.
func Label(variant schema.BadgeVariant) string {
	switch variant {
	case schema.BadgeSecurity:
		return "security"
	case schema.BadgeCoverage:
		return "coverage"
	case schema.BadgeComplexity:
		return "complexity"
	default:
		return "code quality"
	}
}

// ScoreColor maps a 0-100 score onto the color ramp. Bracket bounds are inclusive.
func ScoreColor(score float64) string {
	switch {
	case score >= 90:
		return ColorBrightGreen
	case score >= 80:
		return ColorGreen
	case score >= 70:
		return ColorYellowGreen
	case score >= 60:
		return ColorYellow
	case score >= 50:
		return ColorOrange
	default:
		return ColorRed
	}
}

// GradeColor maps a letter grade to a color; unmapped grades are gray.
func GradeColor(grade schema.Grade) string {
	switch schema.Grade(strings.ToUpper(string(grade))) {
	case schema.GradeA:
		return ColorBrightGreen
	case schema.GradeB:
		return ColorGreen
	case schema.GradeC:
		return ColorYellow
	case schema.GradeD:
		return ColorOrange
	case schema.GradeF:
		return ColorRed
	default:
		return ColorGray
	}
}

// FormatScore prints a score without trailing zeros, so 87 renders as "87" and 87.5 as "87.5".
func FormatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64)
}

// Render lays out a two-part badge. The label and message widths are
// max(6*len+10, 50) and max(6*len+10, 30); the corner radius is 0 for flat, else 3.
func Render(label, message, color, style string) string {
	labelWidth := max(len(label)*charWidth+textPadding, minLabelWidth)
	messageWidth := max(len(message)*charWidth+textPadding, minMessageWidth)
	totalWidth := labelWidth + messageWidth

	radius := "3"
	if style == StyleFlat {
		radius = "0"
	}

	// Text coordinates are in tenths because of the scale(.1) transform.
	labelX := labelWidth * 5
	messageX := labelWidth*10 + messageWidth*5
	labelLen := (labelWidth - textPadding) * 10
	messageLen := (messageWidth - textPadding) * 10

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="20">`+"\n", totalWidth)
	b.WriteString(`        <linearGradient id="b" x2="0" y2="100%">` + "\n")
	b.WriteString(`          <stop offset="0" stop-color="#bbb" stop-opacity=".1"/>` + "\n")
	b.WriteString(`          <stop offset="1" stop-opacity=".1"/>` + "\n")
	b.WriteString(`        </linearGradient>` + "\n")
	b.WriteString(`        <clipPath id="a">` + "\n")
	fmt.Fprintf(&b, `          <rect width="%d" height="20" rx="%s" fill="#fff"/>`+"\n", totalWidth, radius)
	b.WriteString(`        </clipPath>` + "\n")
	b.WriteString(`        <g clip-path="url(#a)">` + "\n")
	fmt.Fprintf(&b, `          <path fill="#555" d="M0 0h%dv20H0z"/>`+"\n", labelWidth)
	fmt.Fprintf(&b, `          <path fill="%s" d="M%d 0h%dv20H%dz"/>`+"\n", color, labelWidth, messageWidth, labelWidth)
	fmt.Fprintf(&b, `          <path fill="url(#b)" d="M0 0h%dv20H0z"/>`+"\n", totalWidth)
	b.WriteString(`        </g>` + "\n")
	b.WriteString(`        <g fill="#fff" text-anchor="middle" font-family="DejaVu Sans,Verdana,Geneva,sans-serif" font-size="110">` + "\n")
	fmt.Fprintf(&b, `          <text x="%d" y="150" fill="#010101" fill-opacity=".3" transform="scale(.1)" textLength="%d">%s</text>`+"\n", labelX, labelLen, label)
	fmt.Fprintf(&b, `          <text x="%d" y="140" transform="scale(.1)" textLength="%d">%s</text>`+"\n", labelX, labelLen, label)
	fmt.Fprintf(&b, `          <text x="%d" y="150" fill="#010101" fill-opacity=".3" transform="scale(.1)" textLength="%d">%s</text>`+"\n", messageX, messageLen, message)
	fmt.Fprintf(&b, `          <text x="%d" y="140" transform="scale(.1)" textLength="%d">%s</text>`+"\n", messageX, messageLen, message)
	b.WriteString(`        </g>` + "\n")
	b.WriteString(`      </svg>`)
	return b.String()
}

// Unknown renders the fallback badge of a variant. It is always flat.
func Unknown(variant schema.BadgeVariant) string {
	if _, ok := schema.ValidBadgeVariants[variant]; !ok {
		variant = schema.BadgeQuality
	}
	return Render(string(variant), UnknownMessage, ColorRed, StyleFlat)
}

// ScoreBadge renders a numeric variant (quality, security or coverage).
// A nil score renders the unknown badge.
func ScoreBadge(variant schema.BadgeVariant, score *float64, style string) string {
	if score == nil || variant == schema.BadgeComplexity {
		return Unknown(variant)
	}
	message := FormatScore(*score) + "/100"
	if variant == schema.BadgeCoverage {
		message = FormatScore(*score) + "%"
	}
	return Render(Label(variant), message, ScoreColor(*score), style)
}

// GradeBadge renders the complexity badge. An empty grade renders the unknown badge.
func GradeBadge(grade schema.Grade, style string) string {
	if grade == "" || grade == schema.GradeUnknown {
		return Unknown(schema.BadgeComplexity)
	}
	return Render(Label(schema.BadgeComplexity), string(grade), GradeColor(grade), style)
}

// ForAnalysis renders the badge of a variant from an analysis. A nil analysis renders unknown.
func ForAnalysis(variant schema.BadgeVariant, a *schema.Analysis, style string) string {
	if a == nil {
		return Unknown(variant)
	}
	switch variant {
	case schema.BadgeSecurity:
		return ScoreBadge(variant, &a.Security.SecurityScore, style)
	case schema.BadgeCoverage:
		return ScoreBadge(variant, &a.CodeMetrics.TestCoverage, style)
	case schema.BadgeComplexity:
		return GradeBadge(a.Complexity.ComplexityGrade, style)
	default:
		return ScoreBadge(schema.BadgeQuality, &a.QualityScore, style)
	}
}

// Value returns the display value of a variant, or "N/A" when there is none.
func Value(variant schema.BadgeVariant, a *schema.Analysis) any {
	if a == nil {
		return "N/A"
	}
	switch variant {
	case schema.BadgeSecurity:
		return a.Security.SecurityScore
	case schema.BadgeCoverage:
		return a.CodeMetrics.TestCoverage
	case schema.BadgeComplexity:
		if a.Complexity.ComplexityGrade == "" {
			return "N/A"
		}
		return a.Complexity.ComplexityGrade
	default:
		return a.QualityScore
	}
}

// CacheKey is the cache key of a rendered badge. The quality variant has no suffix.
func CacheKey(owner, repo, style string, variant schema.BadgeVariant) string {
	key := fmt.Sprintf("badge:%s:%s:%s", schema.NormalizeName(owner), schema.NormalizeName(repo), style)
	if variant != "" && variant != schema.BadgeQuality {
		key += ":" + string(variant)
	}
	return key
}

// CachePattern matches every cached badge of a repository.
func CachePattern(owner, repo string) string {
	return fmt.Sprintf("badge:%s:%s:*", schema.NormalizeName(owner), schema.NormalizeName(repo))
}
