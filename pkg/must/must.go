package must

// Must panics on error. For init paths only.
func Must(err error) {
	if err != nil {
		panic(err)
	}
}

func Value[T any](value T, err error) T {
	Must(err)
	return value
}
