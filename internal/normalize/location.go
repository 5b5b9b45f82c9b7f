package normalize

import (
	"strings"

	"github.com/pegavagas/harvester/internal/job"
)

// stateByName resolves folded state names and abbreviations to the two-letter
// state code.
var stateByName = map[string]string{
	"ac": "AC", "acre": "AC",
	"al": "AL", "alagoas": "AL",
	"ap": "AP", "amapa": "AP",
	"am": "AM", "amazonas": "AM",
	"ba": "BA", "bahia": "BA",
	"ce": "CE", "ceara": "CE",
	"df": "DF", "distrito federal": "DF",
	"es": "ES", "espirito santo": "ES",
	"go": "GO", "goias": "GO",
	"ma": "MA", "maranhao": "MA",
	"mt": "MT", "mato grosso": "MT",
	"ms": "MS", "mato grosso do sul": "MS",
	"mg": "MG", "minas gerais": "MG",
	"pa": "PA", "para": "PA",
	"pb": "PB", "paraiba": "PB",
	"pr": "PR", "parana": "PR",
	"pe": "PE", "pernambuco": "PE",
	"pi": "PI", "piaui": "PI",
	"rj": "RJ", "rio de janeiro": "RJ",
	"rn": "RN", "rio grande do norte": "RN",
	"rs": "RS", "rio grande do sul": "RS",
	"ro": "RO", "rondonia": "RO",
	"rr": "RR", "roraima": "RR",
	"sc": "SC", "santa catarina": "SC",
	"sp": "SP", "sao paulo": "SP",
	"se": "SE", "sergipe": "SE",
	"to": "TO", "tocantins": "TO",
}

var regionByState = map[string]string{
	"AC": "Norte", "AP": "Norte", "AM": "Norte", "PA": "Norte",
	"RO": "Norte", "RR": "Norte", "TO": "Norte",
	"AL": "Nordeste", "BA": "Nordeste", "CE": "Nordeste", "MA": "Nordeste",
	"PB": "Nordeste", "PE": "Nordeste", "PI": "Nordeste", "RN": "Nordeste",
	"SE": "Nordeste",
	"DF": "Centro-Oeste", "GO": "Centro-Oeste", "MT": "Centro-Oeste",
	"MS": "Centro-Oeste",
	"ES": "Sudeste", "MG": "Sudeste", "RJ": "Sudeste", "SP": "Sudeste",
	"PR": "Sul", "RS": "Sul", "SC": "Sul",
}

// cityNicknames canonicalizes common shorthand city names. The value carries
// the state too because the nickname implies it.
var cityNicknames = map[string]struct {
	city  string
	state string
}{
	"bh":      {"Belo Horizonte", "MG"},
	"poa":     {"Porto Alegre", "RS"},
	"floripa": {"Florianópolis", "SC"},
	"bsb":     {"Brasília", "DF"},
	"sampa":   {"São Paulo", "SP"},
}

// cityByFolded restores canonical casing for capital cities that often arrive
// lowercased or unaccented.
var cityByFolded = map[string]string{
	"sao paulo":      "São Paulo",
	"rio de janeiro": "Rio de Janeiro",
	"belo horizonte": "Belo Horizonte",
	"porto alegre":   "Porto Alegre",
	"florianopolis":  "Florianópolis",
	"brasilia":       "Brasília",
	"curitiba":       "Curitiba",
	"recife":         "Recife",
	"salvador":       "Salvador",
	"fortaleza":      "Fortaleza",
	"campinas":       "Campinas",
	"goiania":        "Goiânia",
	"manaus":         "Manaus",
	"belem":          "Belém",
	"vitoria":        "Vitória",
	"natal":          "Natal",
}

var remoteIndicators = []string{
	"remoto", "remota", "remote", "home office", "home-office",
	"anywhere", "trabalho a distancia", "teletrabalho",
}

// Location parses a free-text location into its structured form. Remote
// indicators short-circuit; otherwise the text is split on common separators
// and each part resolved as city, state, or country.
func Location(text string) job.Location {
	folded := fold(strings.TrimSpace(text))
	if folded == "" {
		return job.Location{}
	}

	for _, ind := range remoteIndicators {
		if strings.Contains(folded, ind) {
			return job.Location{Remote: true, Country: "Brazil"}
		}
	}

	// Normalize separators, then split.
	folded = strings.NewReplacer("-", ",", "/", ",", "|", ",", "–", ",").Replace(folded)
	raw := strings.Split(folded, ",")
	parts := make([]string, 0, len(raw))
	loc := job.Location{}
	for _, part := range raw {
		part = strings.TrimSpace(part)
		switch part {
		case "":
		case "brasil", "brazil", "br":
			loc.Country = "Brazil"
		default:
			parts = append(parts, part)
		}
	}

	for i, part := range parts {
		if nick, ok := cityNicknames[part]; ok {
			if loc.City == "" {
				loc.City = nick.city
			}
			if loc.State == "" {
				loc.State = nick.state
			}
			continue
		}
		if st, ok := stateByName[part]; ok {
			// A leading full state name followed by more parts is the city
			// ("São Paulo - SP"); otherwise it names the state. Two-letter
			// abbreviations always name the state.
			if len(part) > 2 && i == 0 && len(parts) > 1 && loc.City == "" {
				loc.City = canonicalCity(part)
				continue
			}
			if loc.State == "" {
				loc.State = st
			}
			continue
		}
		if loc.City == "" {
			loc.City = canonicalCity(part)
		}
	}

	if loc.State != "" {
		loc.Region = regionByState[loc.State]
		loc.Country = "Brazil"
	}
	// "São Paulo" alone is ambiguous between city and state; the city keeps
	// its state resolution when the folded form names a state too.
	if loc.City != "" && loc.State == "" {
		if st, ok := stateByName[fold(loc.City)]; ok {
			loc.State = st
			loc.Region = regionByState[st]
			loc.Country = "Brazil"
		}
	}
	return loc
}

func canonicalCity(folded string) string {
	if canonical, ok := cityByFolded[folded]; ok {
		return canonical
	}
	return titleCase(folded)
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if len(w) > 2 || i == 0 {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
