package mcqstudio

// collection keeps questions addressable by id while preserving the order
// they were generated in.
type collection struct {
	questions map[int]*Question
	order     []int
}

func newCollection(capacity int) *collection {
	return &collection{
		questions: make(map[int]*Question, capacity),
		order:     make([]int, 0, capacity),
	}
}

// add appends a question to the end of the collection
func (c *collection) add(q *Question) {
	c.questions[q.ID] = q
	c.order = append(c.order, q.ID)
}

func (c *collection) get(id int) (*Question, bool) {
	q, ok := c.questions[id]
	return q, ok
}

// remove deletes a question and its slot in the ordering
func (c *collection) remove(id int) bool {
	if _, ok := c.questions[id]; !ok {
		return false
	}
	delete(c.questions, id)

	for i, qid := range c.order {
		if qid == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return true
}

func (c *collection) size() int {
	return len(c.order)
}

// each visits questions in collection order
func (c *collection) each(fn func(q *Question)) {
	for _, id := range c.order {
		fn(c.questions[id])
	}
}
