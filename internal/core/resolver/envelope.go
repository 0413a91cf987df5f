package resolver

// Envelope 統一回應格式，null 欄位必須保留
type Envelope struct {
	Classification string      `json:"classification"`
	Data           any         `json:"data"`
	Source         *Provenance `json:"source"`
	Confidence     float64     `json:"confidence"`
	Error          *string     `json:"error"`
}

// Failed 是否為錯誤回應
func (e *Envelope) Failed() bool {
	return e.Error != nil
}

// RecipeRow 單筆食譜，id/image 只有資料庫來源才有值
type RecipeRow struct {
	ID          *string  `json:"id"`
	Name        string   `json:"name"`
	Ingredients []string `json:"ingredients"`
	Image       *string  `json:"image"`
}

// RecipeList suggest/similar/specific 的資料
type RecipeList struct {
	Recipes []RecipeRow `json:"recipes"`
}

// SubstituteData substitute 的資料，reasons 僅在要求且有回傳時出現
type SubstituteData struct {
	Substitutes []string          `json:"substitutes"`
	Reasons     map[string]string `json:"reasons,omitempty"`
}

// ContextData context 的資料
type ContextData struct {
	Ingredients []string `json:"ingredients"`
}

// RecipeDetailData lookup/rewrite 的資料
type RecipeDetailData struct {
	Name          string   `json:"name"`
	Ingredients   []string `json:"ingredients"`
	CookingMethod []string `json:"cooking_method"`
}

func successEnvelope(intent Intent, data any, src Provenance, confidence float64) *Envelope {
	return &Envelope{
		Classification: string(intent),
		Data:           data,
		Source:         &src,
		Confidence:     confidence,
	}
}

// ErrorEnvelope 錯誤回應，source 與 data 皆為 null
func ErrorEnvelope(classification string, message string, confidence float64) *Envelope {
	return &Envelope{
		Classification: classification,
		Confidence:     confidence,
		Error:          &message,
	}
}

// payload 各解析層的輸出，由 shape 依來源轉成對外格式
type payload interface {
	empty() bool
	shape(src Provenance) any
}

type candidates []Candidate

func (c candidates) empty() bool { return len(c) == 0 }

func (c candidates) shape(src Provenance) any {
	rows := make([]RecipeRow, 0, len(c))
	for _, cand := range c {
		rows = append(rows, shapeRow(cand, src))
	}
	return RecipeList{Recipes: rows}
}

func shapeRow(cand Candidate, src Provenance) RecipeRow {
	row := RecipeRow{Name: cand.Name}
	if len(cand.Ingredients) > 0 {
		row.Ingredients = cand.Ingredients
	}
	if src == SourceDataset {
		id, image := cand.ID, cand.Image
		row.ID = &id
		row.Image = &image
	}
	return row
}

type substituteSet struct {
	result           *SubstituteResult
	includeReasoning bool
}

func (s substituteSet) empty() bool { return s.result == nil || len(s.result.Items) == 0 }

func (s substituteSet) shape(Provenance) any {
	data := SubstituteData{Substitutes: []string{}}
	if s.result == nil {
		return data
	}
	if len(s.result.Items) > 0 {
		data.Substitutes = s.result.Items
	}
	if s.includeReasoning && len(s.result.Reasons) > 0 {
		data.Reasons = s.result.Reasons
	}
	return data
}

type contextItems []string

func (c contextItems) empty() bool { return len(c) == 0 }

func (c contextItems) shape(Provenance) any {
	if len(c) == 0 {
		return ContextData{Ingredients: []string{}}
	}
	return ContextData{Ingredients: c}
}

type details struct {
	name string
	*RecipeDetails
}

func (d details) empty() bool {
	return d.RecipeDetails == nil || (len(d.Ingredients) == 0 && len(d.CookingMethod) == 0)
}

func (d details) shape(Provenance) any {
	return RecipeDetailData{
		Name:          d.name,
		Ingredients:   d.Ingredients,
		CookingMethod: d.CookingMethod,
	}
}

type singleRecipe struct {
	*Candidate
}

func (s singleRecipe) empty() bool { return s.Candidate == nil || s.Name == "" }

func (s singleRecipe) shape(src Provenance) any {
	return shapeRow(*s.Candidate, src)
}
