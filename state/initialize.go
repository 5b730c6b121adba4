package state

import (
	"time"
)

// newLocalEnv creates a new LocalEnv instance with default values
func newLocalEnv() *LocalEnv {
	return &LocalEnv{
		start: time.Now(),
		DefaultCover: []byte(`<svg viewBox="0 0 600 800" xmlns="http://www.w3.org/2000/svg">
  <rect x="0" y="0" width="600" height="800" fill="#f5f2e9"/>
  <rect x="30" y="30" width="540" height="740" fill="none" stroke="#4a4036" stroke-width="3"/>
  <rect x="42" y="42" width="516" height="716" fill="none" stroke="#4a4036" stroke-width="1"/>
  <line x1="90" y1="260" x2="510" y2="260" stroke="#4a4036" stroke-width="2"/>
  <line x1="90" y1="540" x2="510" y2="540" stroke="#4a4036" stroke-width="2"/>
  <path d="M270 390 C285 370, 315 370, 330 390 C315 410, 285 410, 270 390"
        fill="none" stroke="#4a4036" stroke-width="2"/>
  <circle cx="300" cy="390" r="6" fill="#4a4036"/>
</svg>`),
	}
}
