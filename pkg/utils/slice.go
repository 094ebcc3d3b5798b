package utils

// Or returns the first non zero value.
func Or[T comparable](vals ...T) T {
	var zero T
	for _, v := range vals {
		if v != zero {
			return v
		}
	}
	return zero
}

func FilterSlice[T any](datas []T, keep func(T) bool) []T {
	res := make([]T, 0, len(datas))
	for _, d := range datas {
		if keep(d) {
			res = append(res, d)
		}
	}
	return res
}

func MapSlice[T, R any](datas []T, f func(T) R) []R {
	res := make([]R, 0, len(datas))
	for _, d := range datas {
		res = append(res, f(d))
	}
	return res
}

func Slice2Map[K comparable, V any](datas []V, key func(V) K) map[K]V {
	res := make(map[K]V, len(datas))
	for _, d := range datas {
		res[key(d)] = d
	}
	return res
}
