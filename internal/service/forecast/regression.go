package forecast

import (
	"errors"
	"math"
)

var errSingular = errors.New("singular normal equations")

// polynomial is c0 + c1·(x-center) + c2·(x-center)², with unused terms zero.
type polynomial struct {
	coeffs [3]float64
	center float64
	degree int
}

func (p polynomial) eval(x float64) float64 {
	d := x - p.center
	return p.coeffs[0] + p.coeffs[1]*d + p.coeffs[2]*d*d
}

// fitPolynomial solves the least-squares fit of the given degree (0-2) over
// the points. x is centered on its mean for conditioning.
func fitPolynomial(xs, ys []float64, degree int) (polynomial, error) {
	if len(xs) != len(ys) || len(xs) == 0 {
		return polynomial{}, errors.New("mismatched or empty sample")
	}
	if degree < 0 || degree > 2 {
		return polynomial{}, errors.New("degree must be between 0 and 2")
	}

	center := 0.0
	for _, x := range xs {
		center += x
	}
	center /= float64(len(xs))

	// Power sums Σd^k for k=0..4 and Σy·d^k for k=0..2.
	var s [5]float64
	var t [3]float64
	for i, x := range xs {
		d := x - center
		pow := 1.0
		for k := 0; k < 5; k++ {
			s[k] += pow
			if k < 3 {
				t[k] += ys[i] * pow
			}
			pow *= d
		}
	}

	n := degree + 1
	var a [3][4]float64
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			a[r][c] = s[r+c]
		}
		a[r][n] = t[r]
	}

	sol, err := solve(a, n)
	if err != nil {
		return polynomial{}, err
	}

	p := polynomial{center: center, degree: degree}
	copy(p.coeffs[:n], sol[:n])
	return p, nil
}

// solve runs Gaussian elimination with partial pivoting on the n×(n+1)
// augmented matrix.
func solve(a [3][4]float64, n int) ([3]float64, error) {
	const eps = 1e-12

	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(a[pivot][col]) < eps {
			return [3]float64{}, errSingular
		}
		a[col], a[pivot] = a[pivot], a[col]

		for r := col + 1; r < n; r++ {
			f := a[r][col] / a[col][col]
			for c := col; c <= n; c++ {
				a[r][c] -= f * a[col][c]
			}
		}
	}

	var x [3]float64
	for r := n - 1; r >= 0; r-- {
		sum := a[r][n]
		for c := r + 1; c < n; c++ {
			sum -= a[r][c] * x[c]
		}
		x[r] = sum / a[r][r]
	}
	return x, nil
}
