package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRandomStoryParamsFillsFromCatalogues(t *testing.T) {
	p := RandomStoryParams(NewRand(1), StoryParams{}, nil)

	assert.Equal(t, DefaultStudentName, p.StudentName)
	assert.Equal(t, DefaultStudentAge, p.StudentAge)
	assert.Contains(t, Genres, p.Genre)
	assert.Contains(t, Locations, p.Location)
	assert.Contains(t, Styles, p.Style)
	assert.Contains(t, Friends, p.Friend)
	assert.Len(t, p.Interests, 2)
	assert.NotEqual(t, p.Interests[0], p.Interests[1])
	for _, interest := range p.Interests {
		assert.Contains(t, Interests, interest)
	}
}

func TestRandomStoryParamsKeepsOverrides(t *testing.T) {
	in := StoryParams{
		StudentName: "Ada",
		StudentAge:  10,
		Genre:       "mystery",
		Interests:   []string{"chess"},
		Words:       []string{"night"},
	}
	p := RandomStoryParams(NewRand(2), in, []string{"Grace"})

	assert.Equal(t, "Ada", p.StudentName)
	assert.Equal(t, 10, p.StudentAge)
	assert.Equal(t, "mystery", p.Genre)
	assert.Equal(t, []string{"chess"}, p.Interests)
	assert.Equal(t, "Grace", p.Friend)
	assert.Equal(t, []string{"night"}, p.Words)
}

func TestRandomStoryParamsDeterministicForSeed(t *testing.T) {
	a := RandomStoryParams(NewRand(7), StoryParams{}, nil)
	b := RandomStoryParams(NewRand(7), StoryParams{}, nil)
	assert.Equal(t, a, b)
}

func TestBuildStoryPrompt(t *testing.T) {
	prompt := BuildStoryPrompt(StoryParams{
		StudentName: "Maeve",
		StudentAge:  8,
		Genre:       "comedy",
		Location:    "under water",
		Style:       "poem",
		Interests:   []string{"basketball", "Zelda"},
		Friend:      "Zoe",
		Words:       []string{"eight", "ocean"},
	})

	assert.Contains(t, prompt, "comedy story set under water")
	assert.Contains(t, prompt, "style of poem")
	assert.Contains(t, prompt, "Maeve, who is 8 years old")
	assert.Contains(t, prompt, "basketball and Zelda")
	assert.Contains(t, prompt, "best friend Zoe")
	assert.Contains(t, prompt, "about 2 paragraphs")
	assert.Contains(t, prompt, "Include these words in the story: eight,ocean")
}

func TestQuestionTemplates(t *testing.T) {
	assert.Equal(t, "spell: <play-word>night</play-word>", SpellingQuestion("night"))
	assert.Equal(t, "spelling:night", SpellingKey("Night"))
	assert.Equal(t, "Which is the correct spelling of the word 'ocean'?", BankQuestion("ocean"))
}

func TestRandSample(t *testing.T) {
	rng := NewRand(3)
	assert.Len(t, rng.Sample([]string{"a", "b"}, 5), 2)
	assert.Equal(t, "", rng.Choice(nil))
}
