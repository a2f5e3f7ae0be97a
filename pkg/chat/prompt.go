package chat

import (
	"fmt"
	"strings"

	"github.com/Sternrassler/scripture-client/pkg/scripture"
)

const basePrompt = `You are a knowledgeable and compassionate Bible study assistant. Your role is to:

1. Provide biblical guidance and wisdom
2. Answer questions about faith, theology, and Christian living
3. Use Scripture to support your responses when relevant
4. Be respectful of different denominations and interpretations
5. Encourage further Bible study and prayer

When responding:
- Always ground your answers in biblical truth
- Cite specific verses when appropriate
- Be encouraging and supportive
- If uncertain about theological matters, suggest consulting religious leaders
- Use the provided relevant verses to strengthen your response

Guidelines:
- Be warm, wise, and pastoral in tone
- Avoid denominational bias
- Encourage personal Bible reading and prayer
- Point to Jesus Christ as the ultimate source of truth and hope`

// SystemPrompt builds the system message, listing verses when present.
func SystemPrompt(verses []scripture.Verse) string {
	if len(verses) == 0 {
		return basePrompt
	}

	var sb strings.Builder
	sb.WriteString(basePrompt)
	sb.WriteString("\n\nRelevant Bible verses for this conversation:\n")
	for i, v := range verses {
		fmt.Fprintf(&sb, "%d. %s: %q\n", i+1, v.Reference, v.Text)
	}
	sb.WriteString("\nUse these verses wisely to support, clarify, or provide biblical perspective on your response. You may quote them directly or reference them naturally in your answer.")
	return sb.String()
}

// keywords is the vocabulary matched by ExtractKeywords.
var keywords = []string{
	"love", "faith", "hope", "forgiveness", "sin", "salvation", "grace", "mercy",
	"prayer", "worship", "praise", "blessing", "peace", "joy", "strength",
	"wisdom", "truth", "righteousness", "justice", "compassion", "kindness",
	"patience", "humility", "sacrifice", "redemption", "eternal", "heaven",
	"hell", "death", "resurrection", "holy", "sacred", "divine", "miracle",
	"prophet", "disciple", "apostle", "church", "ministry", "gospel",
	"commandment", "covenant", "promise", "testimony", "witness", "spirit",
	"soul", "heart", "mind", "temptation", "obedience", "fear", "courage",
	"trust", "believe", "doubt", "thanksgiving", "repentance",
	"creation", "creator", "almighty", "lord", "god", "jesus", "christ",
	"holy spirit", "father", "son", "trinity", "cross", "crucifixion",
}

// Short words never match; prefixes must be longer still so that "for"
// does not match "forgiveness".
const (
	minKeywordLen = 3
	minPrefixLen  = 5
)

// ExtractKeywords returns the words of text related to the keyword
// vocabulary, lower-cased and de-duplicated in order of appearance. A word
// matches when it contains a keyword ("loved") or is a prefix of one
// ("forgive"). Multi-word keywords match as phrases.
func ExtractKeywords(text string) []string {
	seen := make(map[string]bool)
	var found []string

	lower := strings.ToLower(text)
	for _, phrase := range keywords {
		if strings.Contains(phrase, " ") && strings.Contains(lower, phrase) && !seen[phrase] {
			seen[phrase] = true
			found = append(found, phrase)
		}
	}

	for _, word := range strings.Fields(lower) {
		word = strings.Trim(word, `.,;:!?"'()[]`)
		if len(word) < minKeywordLen || seen[word] {
			continue
		}
		for _, kw := range keywords {
			if strings.Contains(word, kw) || (len(word) >= minPrefixLen && strings.HasPrefix(kw, word)) {
				seen[word] = true
				found = append(found, word)
				break
			}
		}
	}
	return found
}
