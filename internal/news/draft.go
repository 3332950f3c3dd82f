package news

// Draft is the rewriter's unvalidated output for one raw item. The rewrite
// stage promotes a draft to an Article only after tone and length validation.
type Draft struct {
	Title    string
	Body     string
	Summary  string
	Keywords []string
	Caption  string
	Raw      string
}
