package mathutil

// Vec is a float64 vector.
type Vec = []float64

// Mat is a 2D float64 matrix stored as row-major [][]float64.
type Mat = [][]float64

// Cube is a 3D float64 array indexed [t][i][j].
type Cube = [][][]float64

// NewMat creates a rows x cols matrix initialized to zero.
// Rows share one backing array.
func NewMat(rows, cols int) Mat {
	m := make(Mat, rows)
	data := make([]float64, rows*cols)
	for i := range m {
		m[i] = data[i*cols : (i+1)*cols : (i+1)*cols]
	}
	return m
}

// NewMatFill creates a rows x cols matrix filled with val.
func NewMatFill(rows, cols int, val float64) Mat {
	m := NewMat(rows, cols)
	FillMat(m, val)
	return m
}

// NewCube creates an n x rows x cols array initialized to zero.
func NewCube(n, rows, cols int) Cube {
	c := make(Cube, n)
	data := make([]float64, n*rows*cols)
	for k := range c {
		c[k] = make(Mat, rows)
		for i := range c[k] {
			off := (k*rows + i) * cols
			c[k][i] = data[off : off+cols : off+cols]
		}
	}
	return c
}

// NewVecFill creates a vector of length n filled with val.
func NewVecFill(n int, val float64) Vec {
	v := make(Vec, n)
	FillVec(v, val)
	return v
}

// FillMat fills all elements of an existing matrix with val.
func FillMat(m Mat, val float64) {
	for i := range m {
		FillVec(m[i], val)
	}
}

// FillVec fills all elements of an existing vector with val.
func FillVec(v Vec, val float64) {
	for i := range v {
		v[i] = val
	}
}
