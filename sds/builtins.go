// builtins.go - Wrapper fuer Engine-Builtins
package sds

import (
	"github.com/sysds/sysds/graph"
)

// Sigmoid computes 1 / (1 + exp(-X)) cell-wise.
func Sigmoid(X Matrix) Matrix {
	if X.err != nil {
		return X
	}
	return Matrix{X.ctx.node("sigmoid", graph.TypeMatrix, nil, P("X", X))}
}

// DiscoverFD finds functional dependencies between the columns of X that
// hold with at least the given threshold. Mask selects the columns taking
// part. The result is an ncol x ncol matrix of dependency scores.
func DiscoverFD(X, Mask Matrix, threshold float64) Matrix {
	if X.err != nil {
		return X
	}
	return Matrix{X.ctx.node("discoverFD", graph.TypeMatrix, nil, P("X", X), P("Mask", Mask), P("threshold", threshold))}
}

// ImgBrightnessLinearized adds value to every pixel of the linearized
// images in img and clips to [0, channelMax].
func ImgBrightnessLinearized(img Matrix, value float64, channelMax int) Matrix {
	if img.err != nil {
		return img
	}
	return Matrix{img.ctx.node("img_brightness_linearized", graph.TypeMatrix, nil, P("img_in", img), P("value", value), P("channel_max", channelMax))}
}

// ImgPosterizeLinearized limits every pixel to 2^bits levels.
func ImgPosterizeLinearized(img Matrix, bits int) Matrix {
	if img.err != nil {
		return img
	}
	return Matrix{img.ctx.node("img_posterize_linearized", graph.TypeMatrix, nil, P("img_in", img), P("bits", bits))}
}

// SVD factorizes A into U, S and V with A = U %*% S %*% t(V). S is a
// diagonal matrix.
func SVD(A Matrix) MultiReturn {
	if A.err != nil {
		return MultiReturn{A.handle}
	}
	outs := []graph.ValueType{graph.TypeMatrix, graph.TypeMatrix, graph.TypeMatrix}
	return MultiReturn{A.ctx.node("svd", graph.TypeMultiReturn, outs, P("A", A))}
}
