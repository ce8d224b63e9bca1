package detector

import "math"

// shannonEntropy computes the Shannon entropy in bits over the character
// frequency distribution of s. A repeated single character scores 0; a
// random base64 string of typical key length scores well above 4.
func shannonEntropy(s string) float64 {
	if s == "" {
		return 0
	}

	freq := make(map[rune]int)
	total := 0
	for _, c := range s {
		freq[c]++
		total++
	}

	entropy := 0.0
	length := float64(total)
	for _, count := range freq {
		p := float64(count) / length
		entropy -= p * math.Log2(p)
	}
	return entropy
}
