// Package gate filters extracted postings down to the ones worth storing:
// truly remote, workable from Brazil, and relevant to the target roles.
package gate

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/cloudflare/ahocorasick"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/pegavagas/harvester/internal/job"
)

// Config controls the gate thresholds.
type Config struct {
	// TargetRoles are the title categories that count as a role match.
	TargetRoles []string `mapstructure:"target_roles"`
	// MinScore is the relevance threshold on the 0..100 scale.
	MinScore int `mapstructure:"min_score"`
	// StrictRemote rejects postings with no remote signal in the text unless
	// the structured record asserts a remote work mode.
	StrictRemote bool `mapstructure:"strict_remote"`
}

// Flags attached to verdicts.
const (
	FlagHybridOrPresential    = "HYBRID_OR_PRESENTIAL_DETECTED"
	FlagExplicitRemote        = "EXPLICIT_REMOTE_MENTION"
	FlagNoExplicitRemote      = "NO_EXPLICIT_REMOTE_MENTION"
	FlagBrazilConfirmed       = "BRAZIL_LOCATION_CONFIRMED"
	FlagInternational         = "INTERNATIONAL_LOCATION"
	FlagNoLocationRestriction = "REMOTE_NO_LOCATION_RESTRICTION"
)

// pattern matches a folded phrase on word boundaries. Bare substring checks
// would let short tokens fire inside unrelated words, "usa" inside the
// Portuguese verb forms "usar" and "usamos" being the worst offender.
type pattern struct {
	text string
	re   *regexp.Regexp
}

func compilePatterns(phrases ...string) []pattern {
	out := make([]pattern, len(phrases))
	for i, p := range phrases {
		out[i] = pattern{text: p, re: regexp.MustCompile(`\b` + regexp.QuoteMeta(p) + `\b`)}
	}
	return out
}

func matchAny(folded string, patterns []pattern) (string, bool) {
	for _, p := range patterns {
		if p.re.MatchString(folded) {
			return p.text, true
		}
	}
	return "", false
}

// Negative remote patterns dominate: one hybrid or on-site mention rejects
// even when the posting also claims to be remote.
var remoteNegative = compilePatterns(
	"hibrido", "hybrid", "presencial", "on-site", "onsite", "in-office",
	"dias no escritorio", "dias por semana no escritorio",
	"dias presenciais", "modelo hibrido",
	"residir em", "must live in", "must be located in", "relocation required",
)

var remotePositive = compilePatterns(
	"100% remoto", "100% remota", "totalmente remoto", "fully remote",
	"remote-first", "remoto", "remote", "home office", "home-office",
	"anywhere in brazil", "trabalho a distancia", "teletrabalho",
)

// brazilNegative are locations incompatible with working from Brazil.
var brazilNegative = compilePatterns(
	"usa", "united states", "estados unidos", "europe", "europa",
	"portugal", "lisboa", "lisbon", "madrid", "spain", "espanha",
	"germany", "alemanha", "singapore", "tokyo", "london", "londres",
	"relocation",
)

var brazilPositive = compilePatterns(
	"brasil", "brazil", "anywhere in brazil",
	"sao paulo", "rio de janeiro", "belo horizonte", "porto alegre",
	"curitiba", "recife", "florianopolis", "brasilia", "campinas",
	"salvador", "fortaleza",
)

// techKeywords score the stack mentioned in the posting. Points accumulate
// per distinct keyword, capped at 50.
var techKeywords = map[string]int{
	"python":     10,
	"sql":        8,
	"spark":      12,
	"airflow":    15,
	"dbt":        10,
	"kafka":      10,
	"databricks": 12,
	"snowflake":  10,
	"bigquery":   10,
	"aws":        8,
	"gcp":        8,
	"azure":      8,
	"tensorflow": 12,
	"pytorch":    12,
	"rpa":        12,
	"docker":     5,
	"kubernetes": 5,
	"ci/cd":      8,
	"etl":        8,
	"terraform":  8,
}

// internshipTitle needs word boundaries so "International Data Engineer" is
// not penalized as an internship.
var internshipTitle = regexp.MustCompile(`\b(estagio|estagiario|internship|intern)\b`)

const (
	roleMatchPoints = 40
	titleScoreCap   = 50
	techScoreCap    = 50
	defaultMinScore = 50
)

// Gate evaluates extracted postings.
type Gate struct {
	cfg          Config
	targetRoles  map[string]struct{}
	techMatcher  *ahocorasick.Matcher
	techPatterns []string
}

// New builds a gate from config, compiling the keyword automaton once.
func New(cfg Config) *Gate {
	if cfg.MinScore <= 0 {
		cfg.MinScore = defaultMinScore
	}
	targets := make(map[string]struct{}, len(cfg.TargetRoles))
	for _, r := range cfg.TargetRoles {
		targets[r] = struct{}{}
	}
	patterns := make([]string, 0, len(techKeywords))
	for kw := range techKeywords {
		patterns = append(patterns, kw)
	}
	sort.Strings(patterns)
	return &Gate{
		cfg:          cfg,
		targetRoles:  targets,
		techMatcher:  ahocorasick.NewStringMatcher(patterns),
		techPatterns: patterns,
	}
}

// Evaluate runs the three stages in order: remote confirmation, geography,
// relevance. The first failing stage decides the verdict.
func (g *Gate) Evaluate(rec *job.Record, text string) job.Verdict {
	if strings.TrimSpace(rec.TitleOriginal) == "" || strings.TrimSpace(rec.Company) == "" {
		return job.Verdict{Reason: job.ReasonMissingRequiredFields}
	}

	folded := foldText(rec.TitleOriginal + "\n" + rec.Summary + "\n" + text)
	var flags []string

	// Stage 1: remote confirmation.
	if hit, ok := matchAny(folded, remoteNegative); ok {
		flags = append(flags, FlagHybridOrPresential)
		return job.Verdict{Reason: job.ReasonNotTrulyRemote, Flags: append(flags, "PATTERN:"+hit)}
	}
	if _, ok := matchAny(folded, remotePositive); ok {
		flags = append(flags, FlagExplicitRemote)
	} else {
		flags = append(flags, FlagNoExplicitRemote)
		remoteAsserted := rec.WorkMode == job.WorkModeRemote || rec.Location.Remote
		if g.cfg.StrictRemote && !remoteAsserted {
			return job.Verdict{Reason: job.ReasonNotTrulyRemote, Flags: flags}
		}
	}

	// Stage 2: geography.
	locText := folded + "\n" + foldText(rec.Location.City+" "+rec.Location.State+" "+rec.Location.Country)
	_, international := matchAny(locText, brazilNegative)
	_, brazilian := matchAny(locText, brazilPositive)
	switch {
	case brazilian:
		flags = append(flags, FlagBrazilConfirmed)
	case international:
		flags = append(flags, FlagInternational)
		return job.Verdict{Reason: job.ReasonInvalidLocation, Flags: flags}
	default:
		// No location restriction stated; a remote posting with no
		// geography constraint is workable.
		flags = append(flags, FlagNoLocationRestriction)
	}

	// Stage 3: relevance.
	score, relevanceFlags := g.score(rec, folded)
	flags = append(flags, relevanceFlags...)
	if score < g.cfg.MinScore {
		return job.Verdict{Score: score, Reason: job.ReasonLowRelevance, Flags: flags}
	}
	return job.Verdict{Accepted: true, Score: score, Flags: flags}
}

func (g *Gate) score(rec *job.Record, folded string) (int, []string) {
	var flags []string

	title := 0
	if _, ok := g.targetRoles[rec.TitleCategory]; ok {
		title += roleMatchPoints
		flags = append(flags, "ROLE_MATCH:"+rec.TitleCategory)
	}
	switch rec.Seniority {
	case "Senior":
		title += 10
	case "Lead", "Staff", "Principal":
		title += 15
	case "Junior":
		title -= 10
	}
	if rec.Seniority != "" {
		flags = append(flags, "SENIORITY:"+rec.Seniority)
	}
	foldedTitle := foldText(rec.TitleOriginal)
	switch {
	case internshipTitle.MatchString(foldedTitle):
		title -= 20
	case strings.Contains(foldedTitle, "trainee"):
		title -= 15
	}
	if title > titleScoreCap {
		title = titleScoreCap
	}
	if title < 0 {
		title = 0
	}

	tech := 0
	var matched []string
	for _, idx := range g.techMatcher.Match([]byte(folded)) {
		kw := g.techPatterns[idx]
		tech += techKeywords[kw]
		matched = append(matched, kw)
	}
	if tech > techScoreCap {
		tech = techScoreCap
	}
	if len(matched) > 0 {
		sort.Strings(matched)
		flags = append(flags, "TECH_STACK:"+strings.Join(matched, "+"))
	}

	score := title + tech
	if score > 100 {
		score = 100
	}
	return score, flags
}

var foldChain = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

func foldText(s string) string {
	out, _, err := transform.String(foldChain, s)
	if err != nil {
		return strings.ToLower(s)
	}
	return strings.ToLower(out)
}

// Describe renders the verdict for logs.
func Describe(v job.Verdict) string {
	if v.Accepted {
		return fmt.Sprintf("accepted score=%d", v.Score)
	}
	return fmt.Sprintf("rejected reason=%s score=%d", v.Reason, v.Score)
}
