package model

import (
	"math"

	"github.com/prefixsec/prefixsec/pkg/shared/config"
)

// defaultContrastiveMargin is the hinge margin for the separation term:
// secure and vulnerable distributions closer than this on a masked position
// still produce loss.
const defaultContrastiveMargin = 1.0

// LossBreakdown carries every term of the composite training objective. All
// four fields are always populated, even as zero, so monitoring code never
// needs to branch on missing keys.
type LossBreakdown struct {
	LM          float64 `json:"lm_loss"`
	Contrastive float64 `json:"contrastive_loss"`
	KL          float64 `json:"kl_loss"`
	Total       float64 `json:"total_loss"`
}

// combine produces the fixed-weight linear combination of the three terms.
func combine(lm, contrastive, kl float64, weights config.Loss) LossBreakdown {
	return LossBreakdown{
		LM:          lm,
		Contrastive: contrastive,
		KL:          kl,
		Total:       weights.LMWeight*lm + weights.ContrastiveWeight*contrastive + weights.KLWeight*kl,
	}
}

// softmax converts one position's logits into a probability distribution.
func softmax(logits []float64) []float64 {
	maxLogit := math.Inf(-1)
	for _, l := range logits {
		if l > maxLogit {
			maxLogit = l
		}
	}

	probs := make([]float64, len(logits))
	var sum float64
	for i, l := range logits {
		probs[i] = math.Exp(l - maxLogit)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

// maskedCrossEntropy computes the mean token-level cross-entropy of logits
// against labels, multiplying the per-token loss by maskWeight on positions
// where the diff mask is 1 so security-relevant tokens weigh more.
func maskedCrossEntropy(logits [][]float64, labels []int, diffMask []int, maskWeight float64) float64 {
	positions := len(logits)
	if positions > len(labels) {
		positions = len(labels)
	}
	if positions == 0 {
		return 0
	}

	var total, weightSum float64
	for pos := 0; pos < positions; pos++ {
		label := labels[pos]
		if label < 0 || label >= len(logits[pos]) {
			continue
		}
		probs := softmax(logits[pos])

		weight := 1.0
		if pos < len(diffMask) && diffMask[pos] == 1 {
			weight = maskWeight
		}
		total += weight * -math.Log(math.Max(probs[label], 1e-12))
		weightSum += weight
	}
	if weightSum == 0 {
		return 0
	}
	return total / weightSum
}

// contrastiveSeparation evaluates the separation between the secure and
// vulnerable distributions on masked positions only: a hinge on the
// symmetric KL divergence, so already well-separated positions contribute
// nothing. Unmasked context carries no security signal and is skipped.
func contrastiveSeparation(secureLogits, vulnerableLogits [][]float64, diffMask []int, margin float64) float64 {
	positions := len(secureLogits)
	if positions > len(vulnerableLogits) {
		positions = len(vulnerableLogits)
	}

	var total float64
	var masked int
	for pos := 0; pos < positions; pos++ {
		if pos >= len(diffMask) || diffMask[pos] != 1 {
			continue
		}
		secureProbs := softmax(secureLogits[pos])
		vulnerableProbs := softmax(vulnerableLogits[pos])

		separation := klDivergence(secureProbs, vulnerableProbs) + klDivergence(vulnerableProbs, secureProbs)
		if loss := margin - separation; loss > 0 {
			total += loss
		}
		masked++
	}
	if masked == 0 {
		return 0
	}
	return total / float64(masked)
}

// meanKLDivergence computes the mean per-position KL divergence between the
// secure-conditioned distribution and the unconditioned backbone
// distribution. It anchors the secure prefix to the backbone's fluency.
func meanKLDivergence(secureLogits, baseLogits [][]float64) float64 {
	positions := len(secureLogits)
	if positions > len(baseLogits) {
		positions = len(baseLogits)
	}
	if positions == 0 {
		return 0
	}

	var total float64
	for pos := 0; pos < positions; pos++ {
		total += klDivergence(softmax(secureLogits[pos]), softmax(baseLogits[pos]))
	}
	return total / float64(positions)
}

// klDivergence computes KL(p || q) over two aligned distributions.
func klDivergence(p, q []float64) float64 {
	n := len(p)
	if n > len(q) {
		n = len(q)
	}

	var sum float64
	for i := 0; i < n; i++ {
		if p[i] <= 0 {
			continue
		}
		sum += p[i] * math.Log(p[i]/math.Max(q[i], 1e-12))
	}
	return sum
}
