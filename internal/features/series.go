package features

import "math"

// series is a fixed-size ring of float64 samples, oldest first on read.
type series struct {
	values []float64
	next   int
	full   bool
}

func newSeries(size int) *series {
	return &series{values: make([]float64, size)}
}

func (s *series) push(v float64) {
	s.values[s.next] = v
	s.next++
	if s.next == len(s.values) {
		s.next = 0
		s.full = true
	}
}

func (s *series) len() int {
	if s.full {
		return len(s.values)
	}
	return s.next
}

// at returns the i-th sample counting from the oldest retained one.
func (s *series) at(i int) float64 {
	if s.full {
		return s.values[(s.next+i)%len(s.values)]
	}
	return s.values[i]
}

func (s *series) last() (float64, bool) {
	n := s.len()
	if n == 0 {
		return 0, false
	}
	return s.at(n - 1), true
}

func (s *series) first() (float64, bool) {
	if s.len() == 0 {
		return 0, false
	}
	return s.at(0), true
}

func (s *series) sum() float64 {
	total := 0.0
	for i := 0; i < s.len(); i++ {
		total += s.at(i)
	}
	return total
}

func (s *series) mean() float64 {
	n := s.len()
	if n == 0 {
		return 0
	}
	return s.sum() / float64(n)
}

// logReturnStd is the sample standard deviation of consecutive log returns.
func (s *series) logReturnStd() float64 {
	n := s.len()
	if n < 3 {
		return 0
	}
	returns := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		prev, cur := s.at(i-1), s.at(i)
		if prev <= 0 || cur <= 0 {
			continue
		}
		returns = append(returns, math.Log(cur/prev))
	}
	if len(returns) < 2 {
		return 0
	}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))
	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	return math.Sqrt(variance / float64(len(returns)-1))
}

// meanAbsChange is the average absolute difference between consecutive samples.
func (s *series) meanAbsChange() float64 {
	n := s.len()
	if n < 2 {
		return 0
	}
	total := 0.0
	for i := 1; i < n; i++ {
		total += math.Abs(s.at(i) - s.at(i-1))
	}
	return total / float64(n-1)
}
