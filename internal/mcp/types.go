package mcp

type ResolveInput struct {
	TryCount int `json:"try_count,omitempty" jsonschema:"number of echo servers to try, defaults to the configured value"`
}

type ResolveOutput struct {
	IP        string `json:"ip"`
	Server    string `json:"server"`
	Exhausted bool   `json:"exhausted"`
	Report    string `json:"report"`
}

type SurveyInput struct{}

type Tally struct {
	IP    string `json:"ip"`
	Count int    `json:"count"`
}

type SurveyOutput struct {
	Servers  int               `json:"servers"`
	Majority string            `json:"majority"`
	Tallies  []Tally           `json:"tallies"`
	Results  map[string]string `json:"results"`
	Skipped  int               `json:"skipped"`
	Report   string            `json:"report"`
}
