package api

import "encoding/json"

// Embedded decodes run fields whose shape depends on the request: a bare id
// string without ?embed, or {"data": {...}} with it. Levels come back as
// {"data": []} when the run has no level; that decodes to a nil Data.
type Embedded[T any] struct {
	ID   string
	Data *T
}

func (e *Embedded[T]) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		return json.Unmarshal(b, &e.ID)
	}

	var wrap struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(b, &wrap); err != nil {
		return err
	}
	if len(wrap.Data) == 0 || wrap.Data[0] != '{' {
		return nil
	}

	var v T
	if err := json.Unmarshal(wrap.Data, &v); err != nil {
		return err
	}
	e.Data = &v
	return nil
}

// EmbeddedList is the collection counterpart of Embedded, for fields like
// variables that embed as {"data": [...]}.
type EmbeddedList[T any] struct {
	Data []T
}

func (e *EmbeddedList[T]) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" || b[0] == '"' {
		return nil
	}
	var wrap struct {
		Data []T `json:"data"`
	}
	if err := json.Unmarshal(b, &wrap); err != nil {
		return err
	}
	e.Data = wrap.Data
	return nil
}

type Pagination struct {
	Offset int `json:"offset"`
	Max    int `json:"max"`
	Size   int `json:"size"`
}

type GamesResponse struct {
	Data       []GameResource `json:"data"`
	Pagination Pagination     `json:"pagination"`
}

type GameResponse struct {
	Data GameResource `json:"data"`
}

type GameResource struct {
	ID           string      `json:"id"`
	Names        GameNames   `json:"names"`
	Abbreviation string      `json:"abbreviation"`
	Weblink      string      `json:"weblink"`
	Released     int         `json:"released"`
	ReleaseDate  string      `json:"release-date"`
	Players      PlayerBound `json:"players"`
}

type GameNames struct {
	International string `json:"international"`
	Japanese      string `json:"japanese"`
	Twitch        string `json:"twitch"`
}

// PlayerBound tolerates both a bare count and the {"value": n} /
// {"qty": n} object forms seen across resource versions.
type PlayerBound struct {
	Count int
}

func (p *PlayerBound) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] != '{' {
		return json.Unmarshal(b, &p.Count)
	}
	var obj struct {
		Value *int `json:"value"`
		Qty   *int `json:"qty"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	switch {
	case obj.Value != nil:
		p.Count = *obj.Value
	case obj.Qty != nil:
		p.Count = *obj.Qty
	}
	return nil
}

type RunsResponse struct {
	Data       []RunResource `json:"data"`
	Pagination Pagination    `json:"pagination"`
}

type RunResponse struct {
	Data RunResource `json:"data"`
}

type RunResource struct {
	ID        string                         `json:"id"`
	Weblink   string                         `json:"weblink"`
	Game      string                         `json:"game"`
	Category  Embedded[CategoryResource]     `json:"category"`
	Level     Embedded[LevelResource]        `json:"level"`
	Platform  Embedded[PlatformResource]     `json:"platform"`
	Variables EmbeddedList[VariableResource] `json:"variables"`
	Videos    *RunVideos                     `json:"videos"`
	Status    RunStatus                      `json:"status"`
	Players   []RunPlayer                    `json:"players"`
	Date      string                         `json:"date"`
	Submitted string                         `json:"submitted"`
	Times     RunTimes                       `json:"times"`
	System    RunSystem                      `json:"system"`
	Values    map[string]string              `json:"values"`
}

type RunStatus struct {
	Status string `json:"status"`
}

type RunPlayer struct {
	Rel  string `json:"rel"`
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

type RunVideos struct {
	Links []RunVideoLink `json:"links"`
}

type RunVideoLink struct {
	URI string `json:"uri"`
}

type RunTimes struct {
	Primary  string  `json:"primary"`
	PrimaryT float64 `json:"primary_t"`
}

type RunSystem struct {
	Platform string `json:"platform"`
	Emulated bool   `json:"emulated"`
	Region   string `json:"region"`
}

type CategoryResponse struct {
	Data CategoryResource `json:"data"`
}

type CategoryResource struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

type LevelResponse struct {
	Data LevelResource `json:"data"`
}

type LevelResource struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type VariablesResponse struct {
	Data []VariableResource `json:"data"`
}

type VariableResource struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Values VariableValues `json:"values"`
}

type VariableValues struct {
	Values map[string]VariableValue `json:"values"`
}

type VariableValue struct {
	Label string `json:"label"`
}

type UserResponse struct {
	Data UserResource `json:"data"`
}

type UserResource struct {
	ID      string     `json:"id"`
	Names   UserNames  `json:"names"`
	Weblink string     `json:"weblink"`
	Assets  UserAssets `json:"assets"`
}

type UserNames struct {
	International string `json:"international"`
	Japanese      string `json:"japanese"`
}

type UserAssets struct {
	Image UserImage `json:"image"`
}

type UserImage struct {
	URI string `json:"uri"`
}

type PlatformResponse struct {
	Data PlatformResource `json:"data"`
}

type PlatformResource struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Released int    `json:"released"`
}
