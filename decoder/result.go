package decoder

// Hypothesis is one ranked beam search result.
type Hypothesis struct {
	Text          string  // decoded text
	Score         float64 // acoustic + alpha*LM + beta*words
	AcousticScore float64 // log probability of all alignments kept for Text
	LMScore       float64 // unweighted language model log probability
	Words         int     // completed words counted for the word bonus
}
