// Package model は推定器が共通で使うインターフェース、学習状態の管理、
// gobによる永続化を提供します。
package model

import (
	"gonum.org/v1/gonum/mat"
)

// Fitter は教師ありで学習可能なモデルのインターフェース
type Fitter interface {
	// Fit は特徴量行列Xとクラスラベルyで学習する
	Fit(X mat.Matrix, y []string) error
}

// Predictor はクラスラベルを予測するモデルのインターフェース
type Predictor interface {
	// Predict はXの各行に対するラベルを返す
	Predict(X mat.Matrix) ([]string, error)
}

// Classifier は確率推定を備えた分類器
type Classifier interface {
	Fitter
	Predictor

	// PredictProba は各クラスの確率を返す。列はClasses()の順に並ぶ。
	PredictProba(X mat.Matrix) (*mat.Dense, error)

	// Classes は学習時に見たクラスをソート済みで返す
	Classes() []string
}

// Transformer は教師なしの変換器のインターフェース
type Transformer interface {
	// Fit は変換に必要なパラメータを学習する
	Fit(X mat.Matrix) error

	// Transform はデータを変換する
	Transform(X mat.Matrix) (*mat.Dense, error)

	// FitTransform はFitとTransformを同時に実行する
	FitTransform(X mat.Matrix) (*mat.Dense, error)
}

// ParameterGetter はハイパーパラメータを公開するモデルのインターフェース
type ParameterGetter interface {
	// GetParams はモデルのハイパーパラメータを返す（マニフェストに記録される）
	GetParams() map[string]interface{}
}
