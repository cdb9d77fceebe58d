package crossing

import "strconv"

// DefaultClasses is the allow-list of detector classes considered vehicles.
var DefaultClasses = []int{2, 3, 4, 5, 6, 7, 8}

var cocoNames = map[int]string{
	0: "person",
	1: "bicycle",
	2: "car",
	3: "motorcycle",
	4: "airplane",
	5: "bus",
	6: "train",
	7: "truck",
	8: "boat",
}

// ClassLabel returns the COCO name of a class id, or "class_<id>".
func ClassLabel(classID int) string {
	if name, ok := cocoNames[classID]; ok {
		return name
	}
	return "class_" + strconv.Itoa(classID)
}
