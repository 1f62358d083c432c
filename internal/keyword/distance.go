package keyword

// editDistance returns the number of single-rune insertions, deletions, and substitutions
// needed to turn a into b. When transpositions is true, swapping two adjacent runes also
// counts as one edit (optimal string alignment distance).
func editDistance(a, b string, transpositions bool) int {
	if a == b {
		return 0
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	// Three rolling rows: two back (for transpositions), previous, current.
	prev2 := make([]int, len(rb)+1)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
			if transpositions && i > 1 && j > 1 && ra[i-1] == rb[j-2] && ra[i-2] == rb[j-1] {
				curr[j] = min(curr[j], prev2[j-2]+cost)
			}
		}
		prev2, prev, curr = prev, curr, prev2
	}
	return prev[len(rb)]
}

// LevenshteinDistance is the classic edit distance between a and b.
func LevenshteinDistance(a, b string) int {
	return editDistance(a, b, false)
}

// DamerauLevenshteinDistance is the edit distance that also counts an adjacent swap as one edit.
func DamerauLevenshteinDistance(a, b string) int {
	return editDistance(a, b, true)
}
