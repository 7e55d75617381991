/*
Package artifact runs locally stored predictive models.

An artifact is a JSON, YAML or TOML document, optionally gzip or zstd
compressed, describing one model:

	kind: decision_tree | linear | nearest_centroid
	task: classification | regression
	n_features: 4
	classes: [setosa, versicolor, virginica]

plus the parameters for its kind under tree, linear or centroid. Models
expose a single capability, predicting from an ordered feature vector.
*/
package artifact
