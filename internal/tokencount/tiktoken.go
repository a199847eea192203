// Package tokencount estimates prompt token counts for telemetry.
package tokencount

import "github.com/pkoukk/tiktoken-go"

// Estimator counts tokens in a prompt string using a tiktoken
// encoding. Telemetry only: the classifier's own token-count rule
// always uses a literal whitespace split, never this estimator.
type Estimator struct {
	encoding *tiktoken.Tiktoken
}

// NewCL100KBase builds an Estimator using the cl100k_base encoding.
func NewCL100KBase() (*Estimator, error) {
	encoding, err := tiktoken.GetEncoding(tiktoken.MODEL_CL100K_BASE)
	if err != nil {
		return nil, err
	}
	return &Estimator{encoding: encoding}, nil
}

// EstimateText returns the number of tokens text would encode to.
func (e *Estimator) EstimateText(text string) int {
	return len(e.encoding.Encode(text, nil, nil))
}
