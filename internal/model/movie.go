package model

// MovieConcept is the structured record produced by one successful generation.
// Every field is free-form text taken verbatim from the model output.
type MovieConcept struct {
	MovieName      string `json:"movieName"`
	Genre          string `json:"genre"`
	Tagline        string `json:"tagline"`
	PlotSummary    string `json:"plotSummary"`
	KeyCharacters  string `json:"keyCharacters"`
	KeyThemes      string `json:"keyThemes"`
	StoryStructure string `json:"storyStructure"`
	CoreConflict   string `json:"coreConflict"`
	Setting        string `json:"setting"`
	FinalScene     string `json:"finalScene"`
	EndCredits     string `json:"endCredits"`
	MusicTheme     string `json:"musicTheme"`
}

// ConceptField pairs a JSON key with the description the model is asked to fill in.
type ConceptField struct {
	Key         string
	Description string
}

// ConceptFields lists the twelve required keys in presentation order.
var ConceptFields = []ConceptField{
	{Key: "movieName", Description: "Creative movie title"},
	{Key: "genre", Description: "Primary genre"},
	{Key: "tagline", Description: "Compelling tagline"},
	{Key: "plotSummary", Description: "2-3 paragraph plot summary"},
	{Key: "keyCharacters", Description: "Main characters with brief descriptions"},
	{Key: "keyThemes", Description: "Major themes explored"},
	{Key: "storyStructure", Description: "Three-act structure breakdown"},
	{Key: "coreConflict", Description: "Central conflict driving the story"},
	{Key: "setting", Description: "Time period and locations"},
	{Key: "finalScene", Description: "Description of the climactic final scene"},
	{Key: "endCredits", Description: "Special end credits sequence or post-credits scene"},
	{Key: "musicTheme", Description: "Musical style and key musical moments"},
}

// ConceptFromFields builds a concept from a key/value set that is already known to be complete.
func ConceptFromFields(f map[string]string) MovieConcept {
	return MovieConcept{
		MovieName:      f["movieName"],
		Genre:          f["genre"],
		Tagline:        f["tagline"],
		PlotSummary:    f["plotSummary"],
		KeyCharacters:  f["keyCharacters"],
		KeyThemes:      f["keyThemes"],
		StoryStructure: f["storyStructure"],
		CoreConflict:   f["coreConflict"],
		Setting:        f["setting"],
		FinalScene:     f["finalScene"],
		EndCredits:     f["endCredits"],
		MusicTheme:     f["musicTheme"],
	}
}
