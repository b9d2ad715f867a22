package scoring

import (
	"fmt"
	"math"
	"os"

	"github.com/goccy/go-json"
)

// Node is one split or leaf of an isolation tree. A node with Left == -1 is a
// leaf; Size is the number of training samples that ended up in it.
type Node struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Size      int     `json:"size"`
}

// Tree is a single isolation tree as a flat node array rooted at index 0
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Forest is a trained isolation forest exported to JSON by the training
// pipeline. FeatureMeans are the training-set means used as attribution
// baselines; Offset is the score threshold implied by the contamination rate.
type Forest struct {
	FeatureNames  []string  `json:"feature_names"`
	Contamination float64   `json:"contamination"`
	Offset        float64   `json:"offset"`
	NSamples      int       `json:"n_samples"`
	FeatureMeans  []float64 `json:"feature_means"`
	Trees         []Tree    `json:"trees"`
}

// LoadForest reads a forest artifact from disk
func LoadForest(path string) (*Forest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f Forest
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode forest artifact %s: %w", path, err)
	}
	if err := f.validate(); err != nil {
		return nil, fmt.Errorf("invalid forest artifact %s: %w", path, err)
	}
	return &f, nil
}

func (f *Forest) validate() error {
	if len(f.Trees) == 0 {
		return fmt.Errorf("no trees")
	}
	if len(f.FeatureNames) == 0 {
		return fmt.Errorf("no feature names")
	}
	if len(f.FeatureMeans) != len(f.FeatureNames) {
		return fmt.Errorf("feature_means length %d does not match feature_names length %d",
			len(f.FeatureMeans), len(f.FeatureNames))
	}
	if f.NSamples < 2 {
		return fmt.Errorf("n_samples must be at least 2")
	}
	return nil
}

// pathLength walks one tree and returns the adjusted path length for x
func (t *Tree) pathLength(x []float64) float64 {
	depth := 0.0
	i := 0
	for {
		node := t.Nodes[i]
		if node.Left == -1 {
			return depth + averagePathLength(node.Size)
		}
		if x[node.Feature] <= node.Threshold {
			i = node.Left
		} else {
			i = node.Right
		}
		depth++
	}
}

// ScoreSample returns the anomaly score for one encoded feature vector.
// Matches the usual isolation forest formulation: -2^(-E[h(x)]/c(n)), always
// in (-1, 0), lower = more anomalous.
func (f *Forest) ScoreSample(x []float64) float64 {
	total := 0.0
	for i := range f.Trees {
		total += f.Trees[i].pathLength(x)
	}
	mean := total / float64(len(f.Trees))
	return -math.Pow(2, -mean/averagePathLength(f.NSamples))
}

// averagePathLength is c(n), the expected path length of an unsuccessful
// search in a BST of n nodes, used to normalize tree depths.
func averagePathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	if n == 2 {
		return 1
	}
	nf := float64(n)
	return 2*(math.Log(nf-1)+eulerGamma) - 2*(nf-1)/nf
}

const eulerGamma = 0.5772156649015329
