package services

import (
	"fmt"
	"strings"
)

var (
	Genres    = []string{"adventure", "super hero", "mystery", "comedy", "science fiction"}
	Locations = []string{"under water", "wild west", "jungles of Africa", "Antartica", "Japanese Mountains"}
	Styles    = []string{"poem", "comic book", "Shakespeare", "Harry Potter"}
	Interests = []string{
		"basketball", "acting", "directing plays", "American Girl dolls",
		"skateboarding", "ice skating", "Mario Kart", "Zelda",
	}
	Friends    = []string{"Paige", "Maia", "Zadie", "Zoe"}
	TrickWords = []string{"eight", "large", "night", "answer", "different", "world", "continent", "ocean", "country"}
)

const (
	DefaultStudentName = "Maeve"
	DefaultStudentAge  = 8
)

// StoryParams holds everything the story prompt is rendered from. It is
// persisted as the storyline's original request.
type StoryParams struct {
	StudentName string   `json:"student_name"`
	StudentAge  int      `json:"student_age"`
	Genre       string   `json:"genre"`
	Location    string   `json:"location"`
	Style       string   `json:"style"`
	Interests   []string `json:"selected_interests"`
	Friend      string   `json:"friend"`
	Words       []string `json:"words"`
}

// RandomStoryParams fills every empty field of overrides from the catalogues.
// friends, when non-empty, replaces the default friend catalogue.
func RandomStoryParams(rng *Rand, overrides StoryParams, friends []string) StoryParams {
	p := overrides
	if p.StudentName == "" {
		p.StudentName = DefaultStudentName
	}
	if p.StudentAge <= 0 {
		p.StudentAge = DefaultStudentAge
	}
	if p.Genre == "" {
		p.Genre = rng.Choice(Genres)
	}
	if p.Location == "" {
		p.Location = rng.Choice(Locations)
	}
	if p.Style == "" {
		p.Style = rng.Choice(Styles)
	}
	if len(p.Interests) == 0 {
		p.Interests = rng.Sample(Interests, 2)
	}
	if p.Friend == "" {
		if len(friends) == 0 {
			friends = Friends
		}
		p.Friend = rng.Choice(friends)
	}
	return p
}

// BuildStoryPrompt renders the story request sent to the model.
func BuildStoryPrompt(p StoryParams) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a %s story set %s, told in the style of %s.\n", p.Genre, p.Location, p.Style)
	fmt.Fprintf(&b, "The reader is %s, who is %d years old.\n", p.StudentName, p.StudentAge)
	if len(p.Interests) > 0 {
		fmt.Fprintf(&b, "%s likes %s.\n", p.StudentName, strings.Join(p.Interests, " and "))
	}
	if p.Friend != "" {
		fmt.Fprintf(&b, "Their best friend %s should be in the story.\n", p.Friend)
	}
	b.WriteString("The story should be about 2 paragraphs long, separated by a blank line.\n")
	if len(p.Words) > 0 {
		fmt.Fprintf(&b, "Include these words in the story: %s", strings.Join(p.Words, ","))
	}
	return strings.TrimRight(b.String(), "\n")
}

// correctivePrompt is the retry prompt after an attempt left words out.
func correctivePrompt(original string, required, missing []string) string {
	return fmt.Sprintf(
		"%s\nThe previous response did not include all the required words: %s. Missing: %s. Please try again.",
		original, strings.Join(required, ", "), strings.Join(missing, ", "),
	)
}

// rewritePrompt asks for paragraph again with words worked in.
func rewritePrompt(paragraph string, words []string) string {
	return fmt.Sprintf(
		"Rewrite the following paragraph to include the words: %s.\n"+
			"Keep the meaning and tone of the original paragraph as much as possible. "+
			"Respond with the rewritten paragraph only.\n\nOriginal paragraph:\n\"%s\"",
		strings.Join(words, ", "), paragraph,
	)
}

// misspellingPrompt asks for plausible wrong spellings of word.
func misspellingPrompt(word string, count int) string {
	return fmt.Sprintf(
		"Give %d different, plausible misspellings of the word %q that a child might write. "+
			"None of them may be the correct spelling. Respond with JSON {\"misspellings\": [\"...\"]}.",
		count, word,
	)
}

// SpellingQuestion is the prompt shown for a story word.
func SpellingQuestion(word string) string {
	return fmt.Sprintf("spell: %s%s%s", PlayWordOpen, word, PlayWordClose)
}

// SpellingKey identifies a word's question across storylines.
func SpellingKey(word string) string {
	return "spelling:" + strings.ToLower(word)
}

// BankQuestion is the prompt of a multiple-choice bank entry.
func BankQuestion(word string) string {
	return fmt.Sprintf("Which is the correct spelling of the word '%s'?", word)
}
