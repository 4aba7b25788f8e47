package array

// Map applies mapper to every element, producing a slice of the results.
func Map[T1, T2 any](array []T1, mapper func(T1) T2) []T2 {
	result := make([]T2, len(array))
	for i, elem := range array {
		result[i] = mapper(elem)
	}
	return result
}

// Contains reports whether target occurs in the array.
func Contains[T comparable](array []T, target T) bool {
	for _, elem := range array {
		if elem == target {
			return true
		}
	}
	return false
}
