package attendance

import "time"

func SetNowFunc(f func() time.Time) (restore func()) {
	orig := nowFunc
	nowFunc = f
	return func() { nowFunc = orig }
}

func SetNewIDFunc(f func() string) (restore func()) {
	orig := newIDFunc
	newIDFunc = f
	return func() { newIDFunc = orig }
}
