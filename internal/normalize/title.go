package normalize

import "strings"

// titleRule maps folded title substrings to a canonical role category. Rules
// are evaluated in order; the first hit wins.
type titleRule struct {
	category string
	patterns []string
}

var titleRules = []titleRule{
	{"Analytics Engineer", []string{"analytics engineer", "engenheiro de analytics", "engenheira de analytics"}},
	{"Machine Learning Engineer", []string{"machine learning", "ml engineer", "engenheiro de ml", "mlops"}},
	{"Data Architect", []string{"arquiteto de dados", "arquiteta de dados", "data architect"}},
	{"Data Engineer", []string{"engenheiro de dados", "engenheira de dados", "engenheiro(a) de dados", "data engineer"}},
	{"Data Scientist", []string{"cientista de dados", "data scientist"}},
	{"BI Analyst", []string{"analista de bi", "bi analyst", "business intelligence", "analista de business intelligence"}},
	{"Data Analyst", []string{"analista de dados", "data analyst"}},
	{"Full Stack Developer", []string{"full stack", "fullstack", "full-stack"}},
	{"Back End Developer", []string{"back end", "backend", "back-end"}},
}

// TitleCategory maps a raw posting title to its canonical role category, or
// "Other" when no rule matches.
func TitleCategory(title string) string {
	folded := fold(title)
	for _, rule := range titleRules {
		for _, p := range rule.patterns {
			if strings.Contains(folded, p) {
				return rule.category
			}
		}
	}
	return "Other"
}
