package reputation

import "fmt"

type Rank string

const (
	RankBeginner     Rank = "Beginner"
	RankIntermediate Rank = "Intermediate"
	RankAdvanced     Rank = "Advanced"
	RankExpert       Rank = "Expert"
	RankMaster       Rank = "Master"
)

var thresholds = []struct {
	below int
	rank  Rank
}{
	{50, RankBeginner},
	{200, RankIntermediate},
	{500, RankAdvanced},
	{1000, RankExpert},
}

// RankFor derives the rank of a reputation value.
func RankFor(reputation int) Rank {
	for _, t := range thresholds {
		if reputation < t.below {
			return t.rank
		}
	}
	return RankMaster
}

func ParseRank(s string) (Rank, error) {
	switch r := Rank(s); r {
	case RankBeginner, RankIntermediate, RankAdvanced, RankExpert, RankMaster:
		return r, nil
	}
	return "", fmt.Errorf("invalid rank %q, valid ranks are: Beginner, Intermediate, Advanced, Expert, Master", s)
}
