package wordlist

// Accept reports whether a custom word list entry can be used in passages.
// Only lowercase ASCII words are kept; casing and punctuation come from the
// generator.
func Accept(word string) bool {
	if word == "" {
		return false
	}
	for i := 0; i < len(word); i++ {
		if ch := word[i]; ch < 'a' || ch > 'z' {
			return false
		}
	}
	return true
}
