package vision

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// UnknownLabel is reported when the model's winning index has no entry
// in the label table.
const UnknownLabel = "Unknown class"

// DefaultLabels is the label table the mushroom model was trained with.
// A model emitting a different number of scores is still served; startup
// logs the mismatch and extra indices map to UnknownLabel.
var DefaultLabels = []string{
	"almond_mushroom",
	"amanita_gemmata",
	"amethyst_chanterelle",
	"amethyst_deceiver",
	"aniseed_funnel",
	"ascot_hat",
	"bay_bolete",
	"bearded_milkcap",
	"beechwood_sickener",
	"beefsteak_fungus",
	"birch_polypore",
	"birch_woodwart",
	"bitter_beech_bolete",
	"bitter_bolete",
	"black_bulgar",
}

type Labels []string

// Lookup maps a class index to its label.
func (l Labels) Lookup(idx int) string {
	if idx < 0 || idx >= len(l) {
		return UnknownLabel
	}
	return l[idx]
}

// LoadLabels reads one label per line. Blank lines are skipped. An empty
// path returns DefaultLabels.
func LoadLabels(path string) (Labels, error) {
	if path == "" {
		return append(Labels(nil), DefaultLabels...), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var labels Labels
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			labels = append(labels, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("labels file %s is empty", path)
	}
	return labels, nil
}
