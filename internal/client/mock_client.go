package client

import (
	"context"
	"encoding/json"

	"github.com/makeasinger/moviegen/internal/model"
)

// MockClient returns a canned concept. Used for development when no API key is configured.
type MockClient struct{}

func NewMockClient() *MockClient {
	return &MockClient{}
}

// ChatCompletion ignores the request and returns a valid twelve-key JSON object.
func (m *MockClient) ChatCompletion(ctx context.Context, req model.ChatCompletionRequest) (string, error) {
	concept := model.MovieConcept{
		MovieName:      "The Last Projectionist",
		Genre:          "Drama",
		Tagline:        "Every reel hides a second story.",
		PlotSummary:    "A night-shift projectionist at a failing single-screen cinema discovers that the final reel of every film he runs has been altered by someone inside the building.",
		KeyCharacters:  "Walt, the projectionist; Iris, the usher who knows too much; Mr. Kasper, the owner selling the theater.",
		KeyThemes:      "Memory, obsolescence, the stories we tell to keep places alive.",
		StoryStructure: "Act I: the altered reels. Act II: tracing the splices. Act III: the last screening.",
		CoreConflict:   "Walt must expose the saboteur before the cinema is sold and demolished.",
		Setting:        "A small coastal town, late autumn, present day.",
		FinalScene:     "The town fills the theater for a closing-night screening of a film nobody has seen before.",
		EndCredits:     "Credits roll over hand-spliced film leader; a post-credits shot shows a new reel in the booth.",
		MusicTheme:     "Warm analog piano with a recurring projector-click rhythm.",
	}
	data, err := json.Marshal(concept)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// IsConfigured always reports false so callers can surface mock mode.
func (m *MockClient) IsConfigured() bool {
	return false
}
