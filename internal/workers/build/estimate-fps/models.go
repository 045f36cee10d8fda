// internal/workers/build/estimate-fps/models.go
package estimatefps

type Input struct {
	ComponentNames []string `json:"componentNames"`
	GameNames      []string `json:"gameNames"`
}

type Output struct {
	FPS map[string]string `json:"fps"`
}
